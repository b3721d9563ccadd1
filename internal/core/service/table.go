// Package service provides the domain services for TabMesh.
//
// TableService is the single entry point for every table operation:
// initialization, summaries, undo and redo, and the transform commit
// path. Handlers stay thin; everything stateful happens here.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yndnr/tabmesh-go/internal/audit"
	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/ingest"
	"github.com/yndnr/tabmesh-go/internal/persist"
	"github.com/yndnr/tabmesh-go/internal/store"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
	"github.com/yndnr/tabmesh-go/internal/transform"
)

// previewRows caps the row preview embedded in summaries.
const previewRows = 5

// AuditPublisher publishes one event per committed operation.
type AuditPublisher interface {
	Publish(ctx context.Context, ev audit.Event)
}

// TableService coordinates sessions, version logs, ingestion,
// persistence and audit.
type TableService struct {
	sessions *store.Manager
	loader   ingest.Loader
	adapter  persist.Adapter // optional
	audit    AuditPublisher  // optional
	logger   *slog.Logger
	metrics  *metric.Set
}

// NewTableService wires the service. adapter and auditor may be nil
// when persistence or auditing is disabled.
func NewTableService(sessions *store.Manager, loader ingest.Loader, adapter persist.Adapter, auditor AuditPublisher, logger *slog.Logger, metrics *metric.Set) *TableService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = metric.NewForTesting()
	}
	return &TableService{
		sessions: sessions,
		loader:   loader,
		adapter:  adapter,
		audit:    auditor,
		logger:   logger.With("component", "service"),
		metrics:  metrics,
	}
}

// ColumnSummary describes one column in a table summary.
type ColumnSummary struct {
	Name    string      `json:"name"`
	Type    domain.Kind `json:"type"`
	Missing int         `json:"missing"`
}

// TableSummary is the standard view of a table's current state.
type TableSummary struct {
	SessionID  string                    `json:"session_id"`
	TableName  string                    `json:"table_name"`
	Rows       int                       `json:"rows"`
	Columns    []ColumnSummary           `json:"columns"`
	Preview    []map[string]domain.Value `json:"preview"`
	Version    int                       `json:"version"`
	History    int                       `json:"history"`
	CanUndo    bool                      `json:"can_undo"`
	CanRedo    bool                      `json:"can_redo"`
	SizeBytes  int64                     `json:"size_bytes"`
	Operations int                       `json:"operations"`
}

func buildSummary(sessionID, tableName string, log *store.VersionLog) TableSummary {
	snap := log.Current()
	cursor, length := log.Cursor()

	cols := make([]ColumnSummary, 0, len(snap.Schema()))
	missing := snap.MissingCounts()
	for _, col := range snap.Schema() {
		cols = append(cols, ColumnSummary{
			Name:    col.Name,
			Type:    col.Type,
			Missing: missing[col.Name],
		})
	}

	n := snap.Rows()
	if n > previewRows {
		n = previewRows
	}
	preview := make([]map[string]domain.Value, 0, n)
	names := snap.ColumnNames()
	for r := 0; r < n; r++ {
		row := make(map[string]domain.Value, len(names))
		for c, name := range names {
			row[name] = snap.Cell(r, c)
		}
		preview = append(preview, row)
	}

	return TableSummary{
		SessionID:  sessionID,
		TableName:  tableName,
		Rows:       snap.Rows(),
		Columns:    cols,
		Preview:    preview,
		Version:    cursor,
		History:    length,
		CanUndo:    log.CanUndo(),
		CanRedo:    log.CanRedo(),
		SizeBytes:  log.RetainedBytes(),
		Operations: len(log.LiveOperations()),
	}
}

// resolveTable fetches the session (touching it) and the named
// table's log.
func (s *TableService) resolveTable(sessionID, tableName string) (*store.Session, *store.VersionLog, string, error) {
	name := tableName
	if name == "" {
		name = domain.DefaultTableName
	}
	if err := domain.ValidateTableName(name); err != nil {
		return nil, nil, "", err
	}
	sess, err := s.sessions.Resolve(sessionID)
	if err != nil {
		return nil, nil, "", err
	}
	log, err := sess.Tables().Get(name)
	if err != nil {
		return nil, nil, "", err
	}
	return sess, log, name, nil
}

// ============================================================================
// Initialize
// ============================================================================

// InitializeRequest asks for a table to exist in a session.
type InitializeRequest struct {
	SessionID string
	TableName string // defaults to "current"
}

// InitializeResponse reports whether the table was created and its
// resulting state.
type InitializeResponse struct {
	Created bool
	Summary TableSummary
}

// Initialize returns the existing table or creates it, reading
// through the persistence adapter before falling back to the
// ingestion loader. The loader runs at most once per table.
func (s *TableService) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	name := req.TableName
	if name == "" {
		name = domain.DefaultTableName
	}
	if err := domain.ValidateTableName(name); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Resolve(req.SessionID)
	if err != nil {
		return nil, err
	}

	fromIngest := false
	load := func(ctx context.Context) (*domain.Snapshot, error) {
		// 1. Persisted snapshot wins: a restarted server rehydrates
		//    instead of refetching.
		if s.adapter != nil {
			snap, err := s.adapter.Load(ctx, req.SessionID, name)
			if err == nil {
				s.logger.Info("table rehydrated",
					"session_id", req.SessionID, "table", name, "rows", snap.Rows())
				return snap, nil
			}
			if !errors.Is(err, domain.ErrSnapshotNotPersisted) {
				s.logger.Warn("adapter read failed, falling back to ingestion",
					"session_id", req.SessionID, "table", name, "error", err)
			}
		}

		// 2. Fetch from the ingestion service.
		s.metrics.LoadsTotal.Inc()
		snap, err := s.loader.Load(ctx, req.SessionID, name)
		if err != nil {
			s.metrics.LoadsFailed.Inc()
			return nil, err
		}
		fromIngest = true
		return snap, nil
	}

	log, created, err := sess.Tables().GetOrCreate(ctx, name, load, sess.Reserve)
	if err != nil {
		return nil, err
	}

	// 3. Write-behind persist for freshly ingested tables. Failures
	//    are logged, never returned.
	if created && fromIngest && s.adapter != nil {
		s.persistCurrent(ctx, req.SessionID, name, log)
	}
	if created {
		s.logger.Info("table initialized",
			"session_id", req.SessionID, "table", name, "rows", log.Current().Rows())
	}

	return &InitializeResponse{
		Created: created,
		Summary: buildSummary(req.SessionID, name, log),
	}, nil
}

// ============================================================================
// Summary / ListTables / Operations
// ============================================================================

// SummaryRequest fetches the current state of one table.
type SummaryRequest struct {
	SessionID string
	TableName string
}

// Summary returns the table's current snapshot statistics and preview.
func (s *TableService) Summary(ctx context.Context, req *SummaryRequest) (*TableSummary, error) {
	_, log, name, err := s.resolveTable(req.SessionID, req.TableName)
	if err != nil {
		return nil, err
	}
	sum := buildSummary(req.SessionID, name, log)
	return &sum, nil
}

// TableInfo is one row of a table listing.
type TableInfo struct {
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Columns   int    `json:"columns"`
	SizeBytes int64  `json:"size_bytes"`
}

// ListTablesRequest lists the tables of one session.
type ListTablesRequest struct {
	SessionID string
}

// ListTablesResponse carries the listing plus session totals.
type ListTablesResponse struct {
	Tables    []TableInfo `json:"tables"`
	SizeBytes int64       `json:"size_bytes"`
}

// ListTables enumerates the session's tables.
func (s *TableService) ListTables(ctx context.Context, req *ListTablesRequest) (*ListTablesResponse, error) {
	sess, err := s.sessions.Resolve(req.SessionID)
	if err != nil {
		return nil, err
	}

	names := sess.Tables().Names()
	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		log, err := sess.Tables().Get(name)
		if err != nil {
			continue // dropped concurrently
		}
		snap := log.Current()
		tables = append(tables, TableInfo{
			Name:      name,
			Rows:      snap.Rows(),
			Columns:   len(snap.Schema()),
			SizeBytes: log.RetainedBytes(),
		})
	}
	return &ListTablesResponse{
		Tables:    tables,
		SizeBytes: sess.SizeBytes(),
	}, nil
}

// OperationsRequest fetches a table's operation trail.
type OperationsRequest struct {
	SessionID string
	TableName string
}

// OperationsResponse carries the full trail, oldest first.
type OperationsResponse struct {
	Operations []*domain.OperationRecord `json:"operations"`
}

// Operations returns the table's operation trail, including records
// for undone and trimmed transitions.
func (s *TableService) Operations(ctx context.Context, req *OperationsRequest) (*OperationsResponse, error) {
	_, log, _, err := s.resolveTable(req.SessionID, req.TableName)
	if err != nil {
		return nil, err
	}
	return &OperationsResponse{Operations: log.OperationTrail()}, nil
}

// ============================================================================
// Undo / Redo
// ============================================================================

// HistoryRequest targets one table for an undo or redo step.
type HistoryRequest struct {
	SessionID string
	TableName string
}

// Undo steps the table back one version.
func (s *TableService) Undo(ctx context.Context, req *HistoryRequest) (*TableSummary, error) {
	_, log, name, err := s.resolveTable(req.SessionID, req.TableName)
	if err != nil {
		return nil, err
	}
	if _, err := log.Undo(); err != nil {
		return nil, err
	}
	s.metrics.UndosTotal.Inc()
	s.persistCurrent(ctx, req.SessionID, name, log)

	sum := buildSummary(req.SessionID, name, log)
	return &sum, nil
}

// Redo steps the table forward one version.
func (s *TableService) Redo(ctx context.Context, req *HistoryRequest) (*TableSummary, error) {
	_, log, name, err := s.resolveTable(req.SessionID, req.TableName)
	if err != nil {
		return nil, err
	}
	if _, err := log.Redo(); err != nil {
		return nil, err
	}
	s.metrics.RedosTotal.Inc()
	s.persistCurrent(ctx, req.SessionID, name, log)

	sum := buildSummary(req.SessionID, name, log)
	return &sum, nil
}

// ============================================================================
// DropTable
// ============================================================================

// DropTableRequest removes one table from a session.
type DropTableRequest struct {
	SessionID string
	TableName string
}

// DropTableResponse reports the bytes returned to the session quota.
type DropTableResponse struct {
	FreedBytes int64 `json:"freed_bytes"`
}

// DropTable removes the table, releases its quota and clears its
// persisted snapshot.
func (s *TableService) DropTable(ctx context.Context, req *DropTableRequest) (*DropTableResponse, error) {
	name := req.TableName
	if name == "" {
		name = domain.DefaultTableName
	}
	if err := domain.ValidateTableName(name); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Resolve(req.SessionID)
	if err != nil {
		return nil, err
	}

	freed, err := sess.Tables().Drop(name)
	if err != nil {
		return nil, err
	}
	sess.Release(freed)

	if s.adapter != nil {
		if err := s.adapter.Delete(ctx, req.SessionID, name); err != nil {
			s.metrics.PersistFailures.Inc()
			s.logger.Warn("adapter delete failed",
				"session_id", req.SessionID, "table", name, "error", err)
		}
	}
	s.logger.Info("table dropped",
		"session_id", req.SessionID, "table", name, "freed_bytes", freed)
	return &DropTableResponse{FreedBytes: freed}, nil
}

// ============================================================================
// Apply (the transform commit path)
// ============================================================================

// ApplyRequest commits one transform against a table.
type ApplyRequest struct {
	SessionID string
	TableName string
	Transform transform.Transform
}

// ApplyResponse carries the committed record and the new state.
type ApplyResponse struct {
	Record  *domain.OperationRecord `json:"record"`
	Summary TableSummary            `json:"summary"`
}

// Apply runs the transform against the table's current snapshot and
// commits the result: fetch current, build the new snapshot, reserve
// quota, advance the log, then persist and audit off the failure
// path. The table must have been initialized first.
func (s *TableService) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	// 1. Resolve session and table.
	sess, log, name, err := s.resolveTable(req.SessionID, req.TableName)
	if err != nil {
		return nil, err
	}
	if req.Transform == nil {
		return nil, domain.ErrMissingArgument.WithDetails("transform")
	}

	// 2. Build the next snapshot outside any store lock.
	res, err := req.Transform.Apply(log.Current())
	if err != nil {
		return nil, err
	}

	// 3. Commit with the session quota as the reserve check.
	rec, err := domain.NewOperationRecord(req.Transform.Kind(), res.Params, res.Counts)
	if err != nil {
		return nil, err
	}
	if err := log.Commit(res.Snapshot, rec, sess.Reserve); err != nil {
		if errors.Is(err, domain.ErrSessionQuotaExceeded) {
			s.metrics.CommitsRejected.Inc()
			s.logger.Warn("commit rejected by quota",
				"session_id", req.SessionID, "table", name,
				"kind", rec.Kind, "session_bytes", sess.SizeBytes())
		}
		return nil, err
	}
	s.metrics.CommitsTotal.Inc()

	// 4. Write-behind persist and audit. Neither can fail the call.
	s.persistCurrent(ctx, req.SessionID, name, log)
	if s.audit != nil {
		s.audit.Publish(ctx, audit.Event{
			SessionID: req.SessionID,
			TableName: name,
			Record:    rec.Clone(),
			Rows:      res.Snapshot.Rows(),
			Columns:   len(res.Snapshot.Schema()),
		})
	}

	s.logger.Info("operation committed",
		"session_id", req.SessionID, "table", name,
		"kind", rec.Kind, "rows_affected", rec.Counts.RowsAffected)

	return &ApplyResponse{
		Record:  rec.Clone(),
		Summary: buildSummary(req.SessionID, name, log),
	}, nil
}

// persistCurrent writes the table's current snapshot through the
// adapter, logging failures.
func (s *TableService) persistCurrent(ctx context.Context, sessionID, name string, log *store.VersionLog) {
	if s.adapter == nil {
		return
	}
	s.metrics.PersistWrites.Inc()
	if err := s.adapter.Save(ctx, sessionID, name, log.Current()); err != nil {
		s.metrics.PersistFailures.Inc()
		s.logger.Warn("adapter write failed",
			"session_id", sessionID, "table", name, "error", err)
	}
}
