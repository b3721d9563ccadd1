package persist

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/telemetry/logger"
)

func testSnap(t *testing.T) *domain.Snapshot {
	t.Helper()
	snap, err := domain.NewSnapshot(
		[]domain.Column{
			{Name: "id", Type: domain.KindInt},
			{Name: "label", Type: domain.KindString},
		},
		[][]domain.Value{
			{domain.Int(1), domain.Int(2), domain.Missing()},
			{domain.String("a"), domain.Missing(), domain.String("c")},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

// adapterSuite exercises the Adapter contract shared by every
// implementation.
func adapterSuite(t *testing.T, a Adapter) {
	ctx := context.Background()
	snap := testSnap(t)

	if _, err := a.Load(ctx, "s1", "current"); !errors.Is(err, domain.ErrSnapshotNotPersisted) {
		t.Fatalf("Load before save = %v, want ErrSnapshotNotPersisted", err)
	}

	if err := a.Save(ctx, "s1", "current", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := a.Load(ctx, "s1", "current")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Rows() != snap.Rows() {
		t.Fatalf("rows = %d, want %d", got.Rows(), snap.Rows())
	}
	if got.MissingCounts()["label"] != 1 {
		t.Fatalf("missing counts lost in round trip")
	}

	// Same table name under a different session is independent.
	if _, err := a.Load(ctx, "s2", "current"); !errors.Is(err, domain.ErrSnapshotNotPersisted) {
		t.Fatalf("cross-session Load = %v, want ErrSnapshotNotPersisted", err)
	}

	if err := a.Delete(ctx, "s1", "current"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := a.Load(ctx, "s1", "current"); !errors.Is(err, domain.ErrSnapshotNotPersisted) {
		t.Fatalf("Load after delete = %v, want ErrSnapshotNotPersisted", err)
	}
	// Deleting again is not an error.
	if err := a.Delete(ctx, "s1", "current"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestMemoryAdapter(t *testing.T) {
	adapterSuite(t, NewMemoryAdapter())
}

func TestBadgerAdapter(t *testing.T) {
	a, err := NewBadgerAdapter(BadgerConfig{Dir: t.TempDir()}, logger.Discard(), nil)
	if err != nil {
		t.Fatalf("NewBadgerAdapter: %v", err)
	}
	defer a.Close()
	adapterSuite(t, a)
}

func TestBadgerAdapterEncrypted(t *testing.T) {
	dir := t.TempDir()
	key := DeriveKey("test-secret")

	a, err := NewBadgerAdapter(BadgerConfig{Dir: dir, EncryptionKey: key}, logger.Discard(), nil)
	if err != nil {
		t.Fatalf("NewBadgerAdapter: %v", err)
	}
	defer a.Close()
	adapterSuite(t, a)
}

func TestBadgerDeleteSession(t *testing.T) {
	a, err := NewBadgerAdapter(BadgerConfig{Dir: t.TempDir()}, logger.Discard(), nil)
	if err != nil {
		t.Fatalf("NewBadgerAdapter: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	snap := testSnap(t)
	for _, tbl := range []string{"a", "b"} {
		if err := a.Save(ctx, "gone", tbl, snap); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := a.Save(ctx, "kept", "a", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := a.DeleteSession(ctx, "gone"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	for _, tbl := range []string{"a", "b"} {
		if _, err := a.Load(ctx, "gone", tbl); !errors.Is(err, domain.ErrSnapshotNotPersisted) {
			t.Fatalf("Load gone/%s = %v, want ErrSnapshotNotPersisted", tbl, err)
		}
	}
	if _, err := a.Load(ctx, "kept", "a"); err != nil {
		t.Fatalf("unrelated session lost: %v", err)
	}
}

func TestCipherBoxRoundTrip(t *testing.T) {
	box, err := newCipherBox(DeriveKey("secret"))
	if err != nil {
		t.Fatalf("newCipherBox: %v", err)
	}
	plain := []byte(`{"schema":[],"rows":0,"cols":[]}`)

	sealed, err := box.seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("schema")) {
		t.Fatal("sealed payload leaks plaintext")
	}

	opened, err := box.open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatal("round trip mismatch")
	}

	// Wrong key fails closed.
	other, _ := newCipherBox(DeriveKey("different"))
	if _, err := other.open(sealed); !errors.Is(err, domain.ErrAdapterFailure) {
		t.Fatalf("open with wrong key = %v, want ErrAdapterFailure", err)
	}

	// Truncated payloads are rejected.
	if _, err := box.open(sealed[:10]); !errors.Is(err, domain.ErrAdapterFailure) {
		t.Fatalf("open truncated = %v, want ErrAdapterFailure", err)
	}

	if _, err := newCipherBox([]byte("short")); err == nil {
		t.Fatal("newCipherBox accepted a short key")
	}
}
