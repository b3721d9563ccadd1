package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// BadgerConfig configures the on-disk snapshot store.
type BadgerConfig struct {
	Dir        string
	SyncWrites bool
	// GCInterval is how often the value-log GC runs. Defaults to
	// five minutes.
	GCInterval time.Duration
	// EncryptionKey, when set, seals every payload with
	// XChaCha20-Poly1305. Must be 32 bytes; see DeriveKey.
	EncryptionKey []byte
}

// BadgerAdapter persists snapshots in a Badger database under keys of
// the form tbl/{session}/{table}.
type BadgerAdapter struct {
	db     *badger.DB
	box    *cipherBox
	logger *slog.Logger

	metricLSMSize  prometheus.Gauge
	metricVlogSize prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerAdapter opens the database and starts the GC loop.
func NewBadgerAdapter(cfg BadgerConfig, logger *slog.Logger, reg prometheus.Registerer) (*BadgerAdapter, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrAdapterFailure.WithDetails("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 5 * time.Minute
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithDetails("open badger db").WithCause(err)
	}

	a := &BadgerAdapter{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if len(cfg.EncryptionKey) > 0 {
		box, err := newCipherBox(cfg.EncryptionKey)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.box = box
	}

	a.metricLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabmesh_badger_lsm_bytes",
		Help: "Badger LSM tree size in bytes.",
	})
	a.metricVlogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabmesh_badger_vlog_bytes",
		Help: "Badger value log size in bytes.",
	})
	if reg != nil {
		reg.MustRegister(a.metricLSMSize, a.metricVlogSize)
	}

	go a.gcLoop(cfg.GCInterval)

	logger.Info("badger adapter started",
		"dir", cfg.Dir,
		"encrypted", a.box != nil,
		"gc_interval", cfg.GCInterval.String())
	return a, nil
}

// Save encodes the snapshot wire form, seals it when encryption is
// on, and writes it under the table key.
func (a *BadgerAdapter) Save(ctx context.Context, sessionID, tableName string, snap *domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.ErrAdapterFailure.WithDetails("encode snapshot").WithCause(err)
	}
	if a.box != nil {
		payload, err = a.box.seal(payload)
		if err != nil {
			return err
		}
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(sessionID, tableName), payload)
	})
	if err != nil {
		return domain.ErrAdapterFailure.WithDetails("write snapshot").WithCause(err)
	}
	return nil
}

// Load reads and decodes the persisted snapshot for the table.
func (a *BadgerAdapter) Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error) {
	var payload []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(sessionID, tableName))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrSnapshotNotPersisted.WithDetails(sessionID + "/" + tableName)
	}
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithDetails("read snapshot").WithCause(err)
	}

	if a.box != nil {
		payload, err = a.box.open(payload)
		if err != nil {
			return nil, err
		}
	}
	snap, err := domain.UnmarshalSnapshot(payload)
	if err != nil {
		return nil, domain.ErrAdapterFailure.WithDetails("decode snapshot").WithCause(err)
	}
	return snap, nil
}

// Delete removes the table's persisted snapshot.
func (a *BadgerAdapter) Delete(ctx context.Context, sessionID, tableName string) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(sessionID, tableName))
	})
	if err != nil {
		return domain.ErrAdapterFailure.WithDetails("delete snapshot").WithCause(err)
	}
	return nil
}

// DeleteSession removes every persisted snapshot belonging to the
// session. Called on TTL eviction.
func (a *BadgerAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	prefix := []byte("tbl/" + sessionID + "/")
	var keys [][]byte
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return domain.ErrAdapterFailure.WithDetails("scan session keys").WithCause(err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ErrAdapterFailure.WithDetails("delete session keys").WithCause(err)
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (a *BadgerAdapter) Close() error {
	close(a.stopCh)
	<-a.doneCh
	return a.db.Close()
}

func (a *BadgerAdapter) gcLoop(interval time.Duration) {
	defer close(a.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			lsm, vlog := a.db.Size()
			a.metricLSMSize.Set(float64(lsm))
			a.metricVlogSize.Set(float64(vlog))

			// One GC pass per tick; badger returns ErrNoRewrite
			// when there was nothing to collect.
			if err := a.db.RunValueLogGC(0.5); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				a.logger.Warn("badger gc failed", "error", err)
			}
		}
	}
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(f string, args ...any)   { l.logger.Error(sprintf(f, args...)) }
func (l *badgerLogger) Warningf(f string, args ...any) { l.logger.Warn(sprintf(f, args...)) }
func (l *badgerLogger) Infof(f string, args ...any)    { l.logger.Debug(sprintf(f, args...)) }
func (l *badgerLogger) Debugf(f string, args ...any)   { l.logger.Debug(sprintf(f, args...)) }

func sprintf(f string, args ...any) string {
	return strings.TrimSuffix(fmt.Sprintf(f, args...), "\n")
}
