// Package httpserver provides the HTTP/HTTPS server for TabMesh.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/tabmesh-go/internal/core/service"
	"github.com/yndnr/tabmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// TableService handles all table operations.
	TableService *service.TableService

	// Logger for request logging.
	Logger *slog.Logger

	// Metrics records request counts and latencies, and serves
	// /metrics.
	Metrics *metric.Set

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// RateLimitRPS is the per-client rate limit (requests/second,
	// zero = unlimited).
	RateLimitRPS float64

	// RateLimitBurst is the per-client burst allowance.
	RateLimitBurst int
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	h := handler.New(cfg.TableService, cfg.Logger)

	mux := http.NewServeMux()

	// Health endpoints - minimal middleware
	mux.Handle("GET /healthz", Chain(
		http.HandlerFunc(h.Health), RequestID(), Recover(cfg.Logger)))
	mux.Handle("GET /readyz", Chain(
		http.HandlerFunc(h.Ready), RequestID(), Recover(cfg.Logger)))

	// Metrics endpoint - Prometheus exposition format
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(
			cfg.Metrics.Handler(), RequestID(), Recover(cfg.Logger)))
	}

	// Business API endpoints share the full middleware chain.
	// Order: Recover -> CORS -> RequestID -> RateLimit -> AccessLog -> Metrics -> Handler
	business := func(hf http.HandlerFunc) http.Handler {
		middlewares := []Middleware{
			Recover(cfg.Logger),
			CORS(cfg.CORSAllowedOrigins),
			RequestID(),
			RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
			AccessLog(cfg.Logger),
		}
		if cfg.Metrics != nil {
			middlewares = append(middlewares, Metrics(cfg.Metrics))
		}
		return Chain(hf, middlewares...)
	}

	// Table lifecycle
	mux.Handle("POST /v1/sessions/{sid}/tables/{table}/init", business(h.InitTable))
	mux.Handle("GET /v1/sessions/{sid}/tables/{table}/summary", business(h.TableSummary))
	mux.Handle("GET /v1/sessions/{sid}/tables", business(h.ListTables))
	mux.Handle("DELETE /v1/sessions/{sid}/tables/{table}", business(h.DropTable))

	// History
	mux.Handle("POST /v1/sessions/{sid}/tables/{table}/undo", business(h.Undo))
	mux.Handle("POST /v1/sessions/{sid}/tables/{table}/redo", business(h.Redo))
	mux.Handle("GET /v1/sessions/{sid}/tables/{table}/operations", business(h.Operations))

	// Transforms
	mux.Handle("POST /v1/sessions/{sid}/tables/{table}/ops/{kind}", business(h.ApplyOperation))

	return mux
}
