package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/core/service"
	"github.com/yndnr/tabmesh-go/internal/store"
	"github.com/yndnr/tabmesh-go/internal/telemetry/logger"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
)

type stubLoader struct{}

func (stubLoader) Load(ctx context.Context, sessionID, tableName string) (*domain.Snapshot, error) {
	return domain.NewSnapshot(
		[]domain.Column{
			{Name: "name", Type: domain.KindString},
			{Name: "score", Type: domain.KindInt},
		},
		[][]domain.Value{
			{domain.String("ada"), domain.String("bob"), domain.String("cara")},
			{domain.Int(90), domain.Int(40), domain.Int(70)},
		},
	)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mgr := store.NewManager(store.ManagerConfig{Logger: logger.Discard()})
	t.Cleanup(mgr.Close)
	svc := service.NewTableService(mgr, stubLoader{}, nil, nil, logger.Discard(), nil)
	return NewRouter(&RouterConfig{
		TableService: svc,
		Logger:       logger.Discard(),
		Metrics:      metric.NewForTesting(),
	})
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
		}
	}
	return rr, env
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr, env := doRequest(t, router, "GET", "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if env.Code != "OK" {
		t.Fatalf("code = %q, want OK", env.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr, _ := doRequest(t, router, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tabmesh") {
		t.Fatal("metrics exposition missing tabmesh series")
	}
}

func TestInitAndSummary(t *testing.T) {
	router := newTestRouter(t)

	rr, env := doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("init status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	var sum struct {
		Rows    int  `json:"rows"`
		CanUndo bool `json:"can_undo"`
	}
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Rows != 3 || sum.CanUndo {
		t.Fatalf("summary = %+v", sum)
	}

	// Re-init returns 200.
	rr, _ = doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("re-init status = %d, want 200", rr.Code)
	}

	rr, _ = doRequest(t, router, "GET", "/v1/sessions/alice/tables/current/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want 200", rr.Code)
	}
}

func TestSummaryUnknownTable(t *testing.T) {
	router := newTestRouter(t)

	rr, env := doRequest(t, router, "GET", "/v1/sessions/alice/tables/ghost/summary", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if env.Code != "TB-TABL-4040" {
		t.Fatalf("code = %q, want TB-TABL-4040", env.Code)
	}
	if rr.Header().Get("X-Error-Code") != "TB-TABL-4040" {
		t.Fatalf("X-Error-Code = %q", rr.Header().Get("X-Error-Code"))
	}
}

func TestApplyUndoRedoFlow(t *testing.T) {
	router := newTestRouter(t)

	if rr, _ := doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", ""); rr.Code != http.StatusCreated {
		t.Fatalf("init status = %d", rr.Code)
	}

	rr, env := doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/ops/filter_rows",
		`{"conditions":[{"column":"score","op":"ge","operand":70}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status = %d (body %s)", rr.Code, rr.Body.String())
	}

	var applied struct {
		Record struct {
			Kind string `json:"kind"`
		} `json:"record"`
		Summary struct {
			Rows int `json:"rows"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(env.Data, &applied); err != nil {
		t.Fatalf("decode apply response: %v", err)
	}
	if applied.Record.Kind != "filter_rows" || applied.Summary.Rows != 2 {
		t.Fatalf("apply response = %+v", applied)
	}

	rr, _ = doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/undo", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("undo status = %d", rr.Code)
	}
	rr, _ = doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/redo", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("redo status = %d", rr.Code)
	}

	// Redo past the head conflicts.
	rr, env = doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/redo", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("redo at head status = %d, want 409", rr.Code)
	}
	if env.Code != "TB-HIST-4091" {
		t.Fatalf("code = %q, want TB-HIST-4091", env.Code)
	}
}

func TestApplyUnknownKind(t *testing.T) {
	router := newTestRouter(t)
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")

	rr, _ := doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/ops/explode", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestApplyUnknownBodyField(t *testing.T) {
	router := newTestRouter(t)
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")

	rr, _ := doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/ops/filter_rows",
		`{"conditions":[],"bogus":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestOperationsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/ops/rename_columns",
		`{"mapping":{"name":"who"}}`)

	rr, env := doRequest(t, router, "GET", "/v1/sessions/alice/tables/current/operations", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var ops struct {
		Operations []struct {
			Kind string `json:"kind"`
		} `json:"operations"`
	}
	if err := json.Unmarshal(env.Data, &ops); err != nil {
		t.Fatalf("decode operations: %v", err)
	}
	if len(ops.Operations) != 1 || ops.Operations[0].Kind != "rename_columns" {
		t.Fatalf("operations = %+v", ops)
	}
}

func TestListTablesAndDrop(t *testing.T) {
	router := newTestRouter(t)
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/current/init", "")
	doRequest(t, router, "POST", "/v1/sessions/alice/tables/staging/init", "")

	rr, env := doRequest(t, router, "GET", "/v1/sessions/alice/tables", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var listing struct {
		Tables []struct {
			Name string `json:"name"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(listing.Tables))
	}

	rr, _ = doRequest(t, router, "DELETE", "/v1/sessions/alice/tables/staging", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("drop status = %d", rr.Code)
	}
	rr, _ = doRequest(t, router, "GET", "/v1/sessions/alice/tables/staging/summary", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("summary after drop status = %d, want 404", rr.Code)
	}
}
