package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/yndnr/tabmesh-go/internal/audit"
	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/persist"
	"github.com/yndnr/tabmesh-go/internal/store"
	"github.com/yndnr/tabmesh-go/internal/telemetry/logger"
	"github.com/yndnr/tabmesh-go/internal/transform"
)

// fakeLoader serves one canned snapshot and counts calls.
type fakeLoader struct {
	snap  *domain.Snapshot
	err   error
	calls atomic.Int64
}

func (f *fakeLoader) Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

// fakeAuditor records published events.
type fakeAuditor struct {
	events []audit.Event
}

func (f *fakeAuditor) Publish(ctx context.Context, ev audit.Event) {
	f.events = append(f.events, ev)
}

func seedSnapshot(t *testing.T) *domain.Snapshot {
	t.Helper()
	snap, err := domain.NewSnapshot(
		[]domain.Column{
			{Name: "city", Type: domain.KindString},
			{Name: "pop", Type: domain.KindInt},
		},
		[][]domain.Value{
			{domain.String("oslo"), domain.String("bergen"), domain.String("tromso")},
			{domain.Int(700), domain.Missing(), domain.Int(77)},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

type testEnv struct {
	svc     *TableService
	loader  *fakeLoader
	adapter *persist.MemoryAdapter
	auditor *fakeAuditor
}

func newTestService(t *testing.T, cfg store.ManagerConfig) *testEnv {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	mgr := store.NewManager(cfg)
	t.Cleanup(mgr.Close)

	env := &testEnv{
		loader:  &fakeLoader{snap: seedSnapshot(t)},
		adapter: persist.NewMemoryAdapter(),
		auditor: &fakeAuditor{},
	}
	env.svc = NewTableService(mgr, env.loader, env.adapter, env.auditor, logger.Discard(), nil)
	return env
}

func mustInit(t *testing.T, env *testEnv, sessionID string) {
	t.Helper()
	if _, err := env.svc.Initialize(context.Background(), &InitializeRequest{SessionID: sessionID}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func mustDecode(t *testing.T, kind domain.OperationKind, body string) transform.Transform {
	t.Helper()
	tr, err := transform.Decode(kind, []byte(body))
	if err != nil {
		t.Fatalf("Decode(%s): %v", kind, err)
	}
	return tr
}

func TestInitializeLoadsAndPersists(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()

	resp, err := env.svc.Initialize(ctx, &InitializeRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !resp.Created {
		t.Fatal("Created = false on first touch")
	}
	if resp.Summary.Rows != 3 || len(resp.Summary.Columns) != 2 {
		t.Fatalf("summary = %d rows, %d columns", resp.Summary.Rows, len(resp.Summary.Columns))
	}
	if resp.Summary.Columns[1].Missing != 1 {
		t.Fatalf("pop missing = %d, want 1", resp.Summary.Columns[1].Missing)
	}
	if got := env.loader.calls.Load(); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}

	// Fresh ingestion is persisted write-behind.
	if _, err := env.adapter.Load(ctx, "alice", domain.DefaultTableName); err != nil {
		t.Fatalf("adapter.Load after init: %v", err)
	}

	// Second initialize reuses the existing table.
	resp, err = env.svc.Initialize(ctx, &InitializeRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Initialize again: %v", err)
	}
	if resp.Created {
		t.Fatal("Created = true on second touch")
	}
	if got := env.loader.calls.Load(); got != 1 {
		t.Fatalf("loader calls after re-init = %d, want 1", got)
	}
}

func TestInitializeReadsThroughAdapter(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()

	// Seed the adapter as a previous run would have.
	persisted, err := domain.NewSnapshot(
		[]domain.Column{{Name: "city", Type: domain.KindString}},
		[][]domain.Value{{domain.String("oslo")}},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	if err := env.adapter.Save(ctx, "bob", domain.DefaultTableName, persisted); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, err := env.svc.Initialize(ctx, &InitializeRequest{SessionID: "bob"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if resp.Summary.Rows != 1 {
		t.Fatalf("rows = %d, want 1 (persisted snapshot)", resp.Summary.Rows)
	}
	if got := env.loader.calls.Load(); got != 0 {
		t.Fatalf("loader calls = %d, want 0", got)
	}
}

func TestInitializeLoaderFailure(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	env.loader.err = domain.ErrLoadFailed.WithDetails("upstream down")

	_, err := env.svc.Initialize(context.Background(), &InitializeRequest{SessionID: "alice"})
	if !errors.Is(err, domain.ErrLoadFailed) {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}

	// Failure must not leave an empty table behind.
	env.loader.err = nil
	resp, err := env.svc.Initialize(context.Background(), &InitializeRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !resp.Created {
		t.Fatal("retry did not create the table")
	}
}

func TestSummaryUnknownTable(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})

	_, err := env.svc.Summary(context.Background(), &SummaryRequest{SessionID: "alice", TableName: "ghost"})
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Fatalf("err = %v, want ErrTableNotFound", err)
	}
}

func TestApplyCommitsPersistsAndAudits(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")

	tr := mustDecode(t, domain.OpFilterRows, `{"conditions":[{"column":"pop","op":"gt","operand":100}]}`)
	resp, err := env.svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if resp.Summary.Rows != 1 {
		t.Fatalf("rows = %d, want 1", resp.Summary.Rows)
	}
	if resp.Record.Kind != domain.OpFilterRows {
		t.Fatalf("record kind = %s", resp.Record.Kind)
	}
	if !resp.Summary.CanUndo || resp.Summary.CanRedo {
		t.Fatalf("CanUndo=%v CanRedo=%v after commit", resp.Summary.CanUndo, resp.Summary.CanRedo)
	}

	// Persisted copy reflects the committed state.
	snap, err := env.adapter.Load(ctx, "alice", domain.DefaultTableName)
	if err != nil {
		t.Fatalf("adapter.Load: %v", err)
	}
	if snap.Rows() != 1 {
		t.Fatalf("persisted rows = %d, want 1", snap.Rows())
	}

	if len(env.auditor.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(env.auditor.events))
	}
	ev := env.auditor.events[0]
	if ev.SessionID != "alice" || ev.TableName != domain.DefaultTableName || ev.Rows != 1 {
		t.Fatalf("audit event = %+v", ev)
	}
}

func TestApplyTransformErrorLeavesTableUntouched(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")

	tr := mustDecode(t, domain.OpSelectColumns, `{"columns":["nope"]}`)
	if _, err := env.svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}

	sum, err := env.svc.Summary(ctx, &SummaryRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Rows != 3 || sum.CanUndo {
		t.Fatalf("rows=%d CanUndo=%v after failed apply", sum.Rows, sum.CanUndo)
	}
	if len(env.auditor.events) != 0 {
		t.Fatalf("audit events = %d, want 0", len(env.auditor.events))
	}
}

func TestApplyQuotaRejection(t *testing.T) {
	// Enough budget for the seed snapshot but not for a second version.
	seed := seedSnapshot(t)
	env := newTestService(t, store.ManagerConfig{MaxSessionBytes: seed.ApproxSize() + 8})
	ctx := context.Background()
	mustInit(t, env, "alice")

	tr := mustDecode(t, domain.OpRenameColumns, `{"mapping":{"city":"town"}}`)
	if _, err := env.svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr}); !errors.Is(err, domain.ErrSessionQuotaExceeded) {
		t.Fatalf("err = %v, want ErrSessionQuotaExceeded", err)
	}

	sum, err := env.svc.Summary(ctx, &SummaryRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.CanUndo {
		t.Fatal("rejected commit advanced the history")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")

	tr := mustDecode(t, domain.OpFilterRows, `{"conditions":[{"column":"pop","op":"gt","operand":100}]}`)
	if _, err := env.svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	sum, err := env.svc.Undo(ctx, &HistoryRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if sum.Rows != 3 || !sum.CanRedo {
		t.Fatalf("after undo: rows=%d CanRedo=%v", sum.Rows, sum.CanRedo)
	}

	// The persisted copy follows the cursor.
	snap, err := env.adapter.Load(ctx, "alice", domain.DefaultTableName)
	if err != nil {
		t.Fatalf("adapter.Load: %v", err)
	}
	if snap.Rows() != 3 {
		t.Fatalf("persisted rows after undo = %d, want 3", snap.Rows())
	}

	sum, err = env.svc.Redo(ctx, &HistoryRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if sum.Rows != 1 || sum.CanRedo {
		t.Fatalf("after redo: rows=%d CanRedo=%v", sum.Rows, sum.CanRedo)
	}

	if _, err := env.svc.Redo(ctx, &HistoryRequest{SessionID: "alice"}); !errors.Is(err, domain.ErrNothingToRedo) {
		t.Fatalf("redo at head: %v, want ErrNothingToRedo", err)
	}
}

func TestUndoWithoutHistory(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	mustInit(t, env, "alice")

	if _, err := env.svc.Undo(context.Background(), &HistoryRequest{SessionID: "alice"}); !errors.Is(err, domain.ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo", err)
	}
}

func TestOperationsTrailSurvivesUndo(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")

	for _, body := range []string{
		`{"mapping":{"city":"town"}}`,
		`{"mapping":{"town":"place"}}`,
	} {
		tr := mustDecode(t, domain.OpRenameColumns, body)
		if _, err := env.svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if _, err := env.svc.Undo(ctx, &HistoryRequest{SessionID: "alice"}); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	resp, err := env.svc.Operations(ctx, &OperationsRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	if len(resp.Operations) != 2 {
		t.Fatalf("trail length = %d, want 2", len(resp.Operations))
	}
}

func TestListTables(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")
	if _, err := env.svc.Initialize(ctx, &InitializeRequest{SessionID: "alice", TableName: "staging"}); err != nil {
		t.Fatalf("Initialize staging: %v", err)
	}

	resp, err := env.svc.ListTables(ctx, &ListTablesRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(resp.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(resp.Tables))
	}
	if resp.SizeBytes <= 0 {
		t.Fatalf("SizeBytes = %d, want > 0", resp.SizeBytes)
	}
}

func TestDropTableReleasesQuotaAndPersistence(t *testing.T) {
	env := newTestService(t, store.ManagerConfig{})
	ctx := context.Background()
	mustInit(t, env, "alice")

	resp, err := env.svc.DropTable(ctx, &DropTableRequest{SessionID: "alice"})
	if err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if resp.FreedBytes <= 0 {
		t.Fatalf("FreedBytes = %d, want > 0", resp.FreedBytes)
	}
	if _, err := env.adapter.Load(ctx, "alice", domain.DefaultTableName); !errors.Is(err, domain.ErrSnapshotNotPersisted) {
		t.Fatalf("adapter.Load after drop: %v, want ErrSnapshotNotPersisted", err)
	}
	if _, err := env.svc.Summary(ctx, &SummaryRequest{SessionID: "alice"}); !errors.Is(err, domain.ErrTableNotFound) {
		t.Fatalf("Summary after drop: %v, want ErrTableNotFound", err)
	}
}

func TestNilAdapterAndAuditor(t *testing.T) {
	mgr := store.NewManager(store.ManagerConfig{Logger: logger.Discard()})
	t.Cleanup(mgr.Close)
	svc := NewTableService(mgr, &fakeLoader{snap: seedSnapshot(t)}, nil, nil, logger.Discard(), nil)
	ctx := context.Background()

	if _, err := svc.Initialize(ctx, &InitializeRequest{SessionID: "alice"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr, err := transform.Decode(domain.OpRenameColumns, []byte(`{"mapping":{"city":"town"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := svc.Apply(ctx, &ApplyRequest{SessionID: "alice", Transform: tr}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := svc.Undo(ctx, &HistoryRequest{SessionID: "alice"}); err != nil {
		t.Fatalf("Undo: %v", err)
	}
}
