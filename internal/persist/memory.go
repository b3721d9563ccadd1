package persist

import (
	"context"
	"strings"
	"sync"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// MemoryAdapter keeps persisted snapshots in process memory. Used in
// tests and in single-node setups that want rehydration semantics
// without a disk footprint.
type MemoryAdapter struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryAdapter builds an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{entries: make(map[string][]byte)}
}

func (m *MemoryAdapter) Save(_ context.Context, sessionID, tableName string, snap *domain.Snapshot) error {
	payload, err := snap.MarshalJSON()
	if err != nil {
		return domain.ErrAdapterFailure.WithCause(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[string(snapshotKey(sessionID, tableName))] = payload
	return nil
}

func (m *MemoryAdapter) Load(_ context.Context, sessionID, tableName string) (*domain.Snapshot, error) {
	m.mu.RLock()
	payload, ok := m.entries[string(snapshotKey(sessionID, tableName))]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSnapshotNotPersisted.WithDetails(sessionID + "/" + tableName)
	}
	return domain.UnmarshalSnapshot(payload)
}

func (m *MemoryAdapter) Delete(_ context.Context, sessionID, tableName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, string(snapshotKey(sessionID, tableName)))
	return nil
}

func (m *MemoryAdapter) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := "tbl/" + sessionID + "/"
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len reports the number of persisted snapshots.
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryAdapter) Close() error { return nil }
