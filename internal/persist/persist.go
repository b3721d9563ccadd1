// Package persist stores current table snapshots outside process
// memory so a restarted server can rehydrate a session's tables. The
// adapter is strictly write-behind: the in-memory version log is the
// source of truth and adapter failures never fail a commit.
package persist

import (
	"context"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// Adapter is the persistence boundary. Implementations must be safe
// for concurrent use.
type Adapter interface {
	// Save writes the current snapshot for a session's table,
	// replacing any previous one.
	Save(ctx context.Context, sessionID, tableName string, snap *domain.Snapshot) error

	// Load returns the persisted snapshot, or ErrSnapshotNotPersisted
	// when none exists.
	Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error)

	// Delete removes the persisted snapshot. Deleting a missing
	// entry is not an error.
	Delete(ctx context.Context, sessionID, tableName string) error

	// DeleteSession removes every persisted snapshot of one session.
	DeleteSession(ctx context.Context, sessionID string) error

	Close() error
}

// snapshotKey builds the storage key for one session's table.
func snapshotKey(sessionID, tableName string) []byte {
	return []byte("tbl/" + sessionID + "/" + tableName)
}
