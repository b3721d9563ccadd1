package store

import (
	"sync"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// VersionLog holds the linear snapshot history of one table together
// with the cursor that marks the current version. All mutation goes
// through a single mutex, so at most one commit, undo or redo is in
// flight per table at a time.
//
// Layout: history[0] is the initial load and carries no operation
// record; operations[i] describes the transition from history[i] to
// history[i+1]. The cursor indexes history. Entries past the cursor
// are the redo tail.
type VersionLog struct {
	mu         sync.Mutex
	history    []*domain.Snapshot
	operations []*domain.OperationRecord
	cursor     int

	// discarded collects records cut off by a branch-truncating
	// commit or a capacity trim, oldest first. Kept for the
	// operation trail so the full lineage stays inspectable.
	discarded []*domain.OperationRecord

	// maxHistory bounds len(history). Zero means unbounded.
	maxHistory int
}

// ReserveFunc is invoked by Commit with the net change in retained
// bytes the commit would cause. Returning an error aborts the commit
// before any state changes.
type ReserveFunc func(delta int64) error

// NewVersionLog seeds a log with the initial snapshot.
func NewVersionLog(initial *domain.Snapshot, maxHistory int) *VersionLog {
	return &VersionLog{
		history:    []*domain.Snapshot{initial},
		maxHistory: maxHistory,
	}
}

// Current returns the snapshot at the cursor.
func (l *VersionLog) Current() *domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history[l.cursor]
}

// Cursor returns the current cursor position and the history length.
func (l *VersionLog) Cursor() (cursor, length int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor, len(l.history)
}

// RetainedBytes sums the approximate size of every retained snapshot,
// including any redo tail.
func (l *VersionLog) RetainedBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retainedLocked()
}

func (l *VersionLog) retainedLocked() int64 {
	var n int64
	for _, s := range l.history {
		n += s.ApproxSize()
	}
	return n
}

// Commit appends snap as the new current version. Any redo tail is
// truncated, then the capacity bound is applied by dropping the
// oldest entries. The entry at the cursor is never dropped.
//
// reserve, if non-nil, is called with the net byte delta (new
// snapshot minus truncated tail minus trimmed prefix) before any
// mutation; if it returns an error the log is left untouched and the
// error is returned as is.
func (l *VersionLog) Commit(snap *domain.Snapshot, rec *domain.OperationRecord, reserve ReserveFunc) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Work out what the commit will discard so the quota check
	//    sees the true net delta.
	var freed int64
	for _, s := range l.history[l.cursor+1:] {
		freed += s.ApproxSize()
	}
	lengthAfter := l.cursor + 2 // kept prefix plus the new entry
	trim := 0
	if l.maxHistory > 0 && lengthAfter > l.maxHistory {
		trim = lengthAfter - l.maxHistory
	}
	for _, s := range l.history[:trim] {
		freed += s.ApproxSize()
	}

	// 2. Reserve before touching anything. A rejected commit leaves
	//    history, cursor and trail exactly as they were.
	if reserve != nil {
		if err := reserve(snap.ApproxSize() - freed); err != nil {
			return err
		}
	}

	// 3. Truncate the redo tail, archiving its records.
	if tail := l.operations[l.cursor:]; len(tail) > 0 {
		l.discarded = append(l.discarded, tail...)
		l.operations = l.operations[:l.cursor]
	}
	l.history = l.history[:l.cursor+1]

	// 4. Append and advance.
	l.history = append(l.history, snap)
	l.operations = append(l.operations, rec)
	l.cursor++

	// 5. Apply the capacity bound from the oldest end. Records for
	//    dropped transitions move to the discarded list; the new
	//    oldest entry becomes a baseline without a record.
	if trim > 0 {
		l.discarded = append(l.discarded, l.operations[:trim]...)
		l.history = append([]*domain.Snapshot(nil), l.history[trim:]...)
		l.operations = append([]*domain.OperationRecord(nil), l.operations[trim:]...)
		l.cursor -= trim
	}
	return nil
}

// Undo steps the cursor back one version and returns the snapshot it
// now points at. Retained bytes do not change.
func (l *VersionLog) Undo() (*domain.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor == 0 {
		return nil, domain.ErrNothingToUndo
	}
	l.cursor--
	return l.history[l.cursor], nil
}

// Redo steps the cursor forward one version and returns the snapshot
// it now points at.
func (l *VersionLog) Redo() (*domain.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor == len(l.history)-1 {
		return nil, domain.ErrNothingToRedo
	}
	l.cursor++
	return l.history[l.cursor], nil
}

// CanUndo reports whether the cursor has room to move back.
func (l *VersionLog) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor > 0
}

// CanRedo reports whether a redo tail exists.
func (l *VersionLog) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.history)-1
}

// OperationTrail returns every operation ever committed to this
// table, oldest first: records discarded by truncation or trimming,
// then the records of the live history including any redo tail. The
// result is independent of the cursor position. Returned records are
// clones.
func (l *VersionLog) OperationTrail() []*domain.OperationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.OperationRecord, 0, len(l.discarded)+len(l.operations))
	for _, r := range l.discarded {
		out = append(out, r.Clone())
	}
	for _, r := range l.operations {
		out = append(out, r.Clone())
	}
	return out
}

// LiveOperations returns the records of the transitions leading up to
// the current cursor, oldest first. Clones.
func (l *VersionLog) LiveOperations() []*domain.OperationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.OperationRecord, 0, l.cursor)
	for _, r := range l.operations[:l.cursor] {
		out = append(out, r.Clone())
	}
	return out
}
