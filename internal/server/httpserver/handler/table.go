// Package handler provides HTTP request handlers for TabMesh.
package handler

import (
	"io"
	"net/http"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/core/service"
	"github.com/yndnr/tabmesh-go/internal/transform"
)

// maxOperationBody caps transform request bodies.
const maxOperationBody = 1 << 20

// InitTable handles POST /v1/sessions/{sid}/tables/{table}/init.
func (h *Handler) InitTable(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tableSvc.Initialize(r.Context(), &service.InitializeRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, r, status, resp.Summary)
}

// TableSummary handles GET /v1/sessions/{sid}/tables/{table}/summary.
func (h *Handler) TableSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.tableSvc.Summary(r.Context(), &service.SummaryRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sum)
}

// ListTables handles GET /v1/sessions/{sid}/tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tableSvc.ListTables(r.Context(), &service.ListTablesRequest{
		SessionID: r.PathValue("sid"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// DropTable handles DELETE /v1/sessions/{sid}/tables/{table}.
func (h *Handler) DropTable(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tableSvc.DropTable(r.Context(), &service.DropTableRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// Undo handles POST /v1/sessions/{sid}/tables/{table}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	sum, err := h.tableSvc.Undo(r.Context(), &service.HistoryRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sum)
}

// Redo handles POST /v1/sessions/{sid}/tables/{table}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	sum, err := h.tableSvc.Redo(r.Context(), &service.HistoryRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sum)
}

// Operations handles GET /v1/sessions/{sid}/tables/{table}/operations.
func (h *Handler) Operations(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tableSvc.Operations(r.Context(), &service.OperationsRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// ApplyOperation handles POST /v1/sessions/{sid}/tables/{table}/ops/{kind}.
//
// The operation kind is taken from the path, its parameters from the
// JSON body. Unknown kinds and unknown body fields are rejected.
func (h *Handler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	// 1. Read and bound the request body.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOperationBody))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails("read body: "+err.Error()))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	// 2. Decode into a validated transform.
	tr, err := transform.Decode(domain.OperationKind(r.PathValue("kind")), body)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	// 3. Run the commit path.
	resp, err := h.tableSvc.Apply(r.Context(), &service.ApplyRequest{
		SessionID: r.PathValue("sid"),
		TableName: r.PathValue("table"),
		Transform: tr,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
