package store

import (
	"context"
	"sync"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/pkg/cmap"
)

// LoadFunc produces the initial snapshot for a table that does not
// exist yet. It is invoked at most once per table name.
type LoadFunc func(ctx context.Context) (*domain.Snapshot, error)

// Registry maps table names to their version logs within one
// session. Lookups take the sharded read path; creation is
// serialized so a racing pair of initializers invokes the loader
// only once.
type Registry struct {
	tables *cmap.Map[*VersionLog]

	// initMu guards the check-load-insert sequence in GetOrCreate.
	// Loads are rare and bounded by the ingestion timeout, so a
	// per-registry mutex is enough.
	initMu sync.Mutex

	maxHistory int
}

// NewRegistry builds an empty registry. maxHistory bounds each
// table's history; zero means unbounded.
func NewRegistry(maxHistory int) *Registry {
	return &Registry{
		tables:     cmap.New[*VersionLog](),
		maxHistory: maxHistory,
	}
}

// Get returns the log for name, or ErrTableNotFound.
func (r *Registry) Get(name string) (*VersionLog, error) {
	if log, ok := r.tables.Get(name); ok {
		return log, nil
	}
	return nil, domain.ErrTableNotFound.WithDetails("table " + name)
}

// GetOrCreate returns the existing log for name, or invokes load and
// reserve to create one. reserve is called with the initial
// snapshot's size before the table becomes visible; if either load or
// reserve fails, nothing is created.
func (r *Registry) GetOrCreate(ctx context.Context, name string, load LoadFunc, reserve ReserveFunc) (*VersionLog, bool, error) {
	if log, ok := r.tables.Get(name); ok {
		return log, false, nil
	}

	r.initMu.Lock()
	defer r.initMu.Unlock()

	// Re-check under the init lock: a racing initializer may have
	// won while we waited.
	if log, ok := r.tables.Get(name); ok {
		return log, false, nil
	}

	snap, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if reserve != nil {
		if err := reserve(snap.ApproxSize()); err != nil {
			return nil, false, err
		}
	}

	log := NewVersionLog(snap, r.maxHistory)
	r.tables.Set(name, log)
	return log, true, nil
}

// Drop removes name and returns the bytes it was retaining, or
// ErrTableNotFound.
func (r *Registry) Drop(name string) (int64, error) {
	log, ok := r.tables.Pop(name)
	if !ok {
		return 0, domain.ErrTableNotFound.WithDetails("table " + name)
	}
	return log.RetainedBytes(), nil
}

// Names lists the registered table names in no particular order.
func (r *Registry) Names() []string {
	return r.tables.Keys()
}

// Len reports the number of registered tables.
func (r *Registry) Len() int {
	return r.tables.Count()
}

// RetainedBytes sums retained bytes across all tables.
func (r *Registry) RetainedBytes() int64 {
	var n int64
	r.tables.Range(func(_ string, log *VersionLog) bool {
		n += log.RetainedBytes()
		return true
	})
	return n
}
