// Package store implements the in-memory session, table and version
// history state: sharded session tracking, per-table version logs
// with undo and redo, byte quotas and TTL-based eviction.
package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
	"github.com/yndnr/tabmesh-go/pkg/cmap"
)

// ManagerConfig carries the tunables for session lifecycle.
type ManagerConfig struct {
	// TTL evicts sessions idle for longer than this. Zero disables
	// eviction.
	TTL time.Duration
	// SweepInterval is how often the sweeper scans. Defaults to one
	// minute when zero.
	SweepInterval time.Duration
	// MaxSessionBytes bounds the retained size of one session. Zero
	// means unbounded.
	MaxSessionBytes int64
	// MaxHistory bounds each table's version history. Zero means
	// unbounded.
	MaxHistory int

	Logger  *slog.Logger
	Metrics *metric.Set

	// Clock overrides time.Now in tests.
	Clock func() time.Time

	// OnEvict, if set, is called for every evicted session after it
	// has been removed. Used to clear persisted snapshots.
	OnEvict func(sessionID string, tables []string)
}

// Manager tracks live sessions and runs the TTL sweeper. Sessions
// are created on first touch; there is no explicit create call.
type Manager struct {
	cfg      ManagerConfig
	sessions *cmap.Map[*Session]
	logger   *slog.Logger
	metrics  *metric.Set
	clock    func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewManager builds a manager. Call Start to begin sweeping and
// Close to stop.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewForTesting()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		cfg:      cfg,
		sessions: cmap.New[*Session](),
		logger:   cfg.Logger.With("component", "store"),
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background sweeper. Safe to call once.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.sweepLoop()
	})
}

// Close stops the sweeper and waits for it to exit. Returns
// immediately when Start was never called, since there is no loop to
// wait on.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if !m.started.Load() {
		return
	}
	select {
	case <-m.doneCh:
	case <-time.After(5 * time.Second):
	}
}

// Resolve returns the session for id, creating it if absent, and
// refreshes its access time. The id is validated here so every entry
// point shares one rule.
func (m *Manager) Resolve(id string) (*Session, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	now := m.clock()

	// Touch inside the update closure so the refresh and the map
	// membership are decided under the same shard lock. Touching
	// after the lock is released would let the sweeper evict a
	// session that an in-flight resolve is about to return.
	var sess *Session
	created := false
	m.sessions.Update(id, func(cur *Session, ok bool) *Session {
		if ok {
			cur.Touch(now)
			sess = cur
			return cur
		}
		created = true
		sess = newSession(id, m.cfg.MaxSessionBytes, m.cfg.MaxHistory, now)
		return sess
	})

	if created {
		m.metrics.SessionsCreated.Inc()
		m.metrics.SessionsActive.Set(float64(m.sessions.Count()))
		m.logger.Info("session created", "session_id", id)
	}
	return sess, nil
}

// Lookup returns the session for id without creating it, or
// ErrSessionNotFound. The access time is not refreshed.
func (m *Manager) Lookup(id string) (*Session, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	sess, ok := m.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails("session " + id)
	}
	return sess, nil
}

// Evict removes id immediately, regardless of TTL. Returns whether a
// session existed.
func (m *Manager) Evict(id string) bool {
	sess, ok := m.sessions.Pop(id)
	if !ok {
		return false
	}
	m.afterEvict(sess)
	return true
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.Count()
}

// RetainedBytes sums tracked sizes across all sessions.
func (m *Manager) RetainedBytes() int64 {
	var n int64
	m.sessions.Range(func(_ string, s *Session) bool {
		n += s.SizeBytes()
		return true
	})
	return n
}

// SweepNow runs one eviction pass synchronously. Exposed for tests
// and for the CLI's admin surface.
func (m *Manager) SweepNow() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	now := m.clock()
	var expired []*Session
	m.sessions.Range(func(_ string, s *Session) bool {
		if now.Sub(s.LastAccess()) > m.cfg.TTL {
			expired = append(expired, s)
		}
		return true
	})

	evicted := 0
	for _, s := range expired {
		// Re-check under the shard lock: a request may have touched
		// the session between the scan and now.
		removed := m.sessions.RemoveIf(s.ID(), func(cur *Session) bool {
			return now.Sub(cur.LastAccess()) > m.cfg.TTL
		})
		if removed {
			m.afterEvict(s)
			evicted++
		}
	}
	return evicted
}

func (m *Manager) afterEvict(s *Session) {
	tables := s.Tables().Names()
	m.metrics.SessionsEvicted.Inc()
	m.metrics.SessionsActive.Set(float64(m.sessions.Count()))
	m.logger.Info("session evicted",
		"session_id", s.ID(),
		"tables", len(tables),
		"retained_bytes", s.SizeBytes(),
		"idle", m.clock().Sub(s.LastAccess()).Round(time.Second).String(),
	)
	if m.cfg.OnEvict != nil {
		m.cfg.OnEvict(s.ID(), tables)
	}
}

func (m *Manager) sweepLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			n := m.SweepNow()
			m.metrics.RetainedBytes.Set(float64(m.RetainedBytes()))
			if n > 0 {
				m.logger.Debug("sweep complete", "evicted", n)
			}
		}
	}
}
