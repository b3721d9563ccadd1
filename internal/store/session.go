package store

import (
	"sync/atomic"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// Session owns the tables created under one session ID, the byte
// accounting those tables share, and the access timestamp the TTL
// sweeper reads.
type Session struct {
	id        string
	createdAt time.Time
	registry  *Registry

	lastAccess atomic.Int64 // unix nanos
	sizeBytes  atomic.Int64

	maxBytes int64 // zero means unbounded
}

func newSession(id string, maxBytes int64, maxHistory int, now time.Time) *Session {
	s := &Session{
		id:        id,
		createdAt: now,
		registry:  NewRegistry(maxHistory),
		maxBytes:  maxBytes,
	}
	s.lastAccess.Store(now.UnixNano())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Tables returns the session's table registry.
func (s *Session) Tables() *Registry { return s.registry }

// Touch records an access for TTL purposes.
func (s *Session) Touch(now time.Time) {
	s.lastAccess.Store(now.UnixNano())
}

// LastAccess returns the most recent access time.
func (s *Session) LastAccess() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

// SizeBytes returns the tracked retained size.
func (s *Session) SizeBytes() int64 {
	return s.sizeBytes.Load()
}

// Reserve applies delta to the tracked size, rejecting growth past
// the quota. Negative deltas (truncation, table drops) always
// succeed. The compare-and-swap loop keeps concurrent reservations
// from overshooting the bound together.
func (s *Session) Reserve(delta int64) error {
	for {
		cur := s.sizeBytes.Load()
		next := cur + delta
		if next < 0 {
			next = 0
		}
		if delta > 0 && s.maxBytes > 0 && next > s.maxBytes {
			return domain.ErrSessionQuotaExceeded.WithDetails("session " + s.id)
		}
		if s.sizeBytes.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Release returns bytes to the quota, for example after a table drop.
func (s *Session) Release(n int64) {
	if n > 0 {
		_ = s.Reserve(-n)
	}
}
