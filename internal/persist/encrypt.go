package persist

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// cipherBox seals and opens snapshot payloads with XChaCha20-Poly1305.
// The random nonce is prepended to the ciphertext.
type cipherBox struct {
	key []byte
}

// DeriveKey stretches a configured secret into a cipher key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func newCipherBox(key []byte) (*cipherBox, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, domain.ErrAdapterFailure.WithDetails("encryption key must be 32 bytes")
	}
	return &cipherBox{key: key}, nil
}

func (b *cipherBox) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithCause(err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, domain.ErrAdapterFailure.WithCause(err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (b *cipherBox) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithCause(err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, domain.ErrAdapterFailure.WithDetails("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithDetails("decryption failed, wrong key or corrupted data")
	}
	return plain, nil
}
