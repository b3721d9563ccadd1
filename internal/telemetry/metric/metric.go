// Package metric exposes the Prometheus instrumentation used across
// the TabMesh server. All collectors are registered against a single
// registry owned by the process so tests can create isolated sets.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds every collector the server emits. Fields are safe for
// concurrent use, as all Prometheus collectors are.
type Set struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsEvicted prometheus.Counter

	CommitsTotal    prometheus.Counter
	CommitsRejected prometheus.Counter
	UndosTotal      prometheus.Counter
	RedosTotal      prometheus.Counter

	RetainedBytes prometheus.Gauge

	LoadsTotal  prometheus.Counter
	LoadsFailed prometheus.Counter

	PersistWrites   prometheus.Counter
	PersistFailures prometheus.Counter

	AuditPublished prometheus.Counter
	AuditDropped   prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New builds a Set backed by a fresh registry that also carries the
// standard Go runtime and process collectors.
func New() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newSet(reg, true)
}

// NewForTesting builds a Set without runtime collectors. Handy in
// tests that assert on counter values.
func NewForTesting() *Set {
	return newSet(prometheus.NewRegistry(), false)
}

func newSet(reg *prometheus.Registry, _ bool) *Set {
	s := &Set{registry: reg}

	s.SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabmesh_sessions_active",
		Help: "Number of live sessions.",
	})
	s.SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_sessions_created_total",
		Help: "Sessions created since start.",
	})
	s.SessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_sessions_evicted_total",
		Help: "Sessions evicted by the TTL sweeper.",
	})

	s.CommitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_commits_total",
		Help: "Snapshot commits accepted into version logs.",
	})
	s.CommitsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_commits_rejected_total",
		Help: "Snapshot commits rejected by the session size quota.",
	})
	s.UndosTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_undos_total",
		Help: "Successful undo operations.",
	})
	s.RedosTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_redos_total",
		Help: "Successful redo operations.",
	})

	s.RetainedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabmesh_retained_bytes",
		Help: "Approximate bytes retained across all session histories.",
	})

	s.LoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_loads_total",
		Help: "Table loads requested from the ingestion backend.",
	})
	s.LoadsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_loads_failed_total",
		Help: "Table loads that failed.",
	})

	s.PersistWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_persist_writes_total",
		Help: "Snapshot writes handed to the persistence adapter.",
	})
	s.PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_persist_failures_total",
		Help: "Persistence adapter calls that returned an error.",
	})

	s.AuditPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_audit_published_total",
		Help: "Operation records published to the audit stream.",
	})
	s.AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabmesh_audit_dropped_total",
		Help: "Operation records dropped because the audit stream was unavailable.",
	})

	s.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tabmesh_http_requests_total",
		Help: "HTTP requests by route and status class.",
	}, []string{"route", "status"})
	s.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tabmesh_http_request_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	reg.MustRegister(
		s.SessionsActive, s.SessionsCreated, s.SessionsEvicted,
		s.CommitsTotal, s.CommitsRejected, s.UndosTotal, s.RedosTotal,
		s.RetainedBytes,
		s.LoadsTotal, s.LoadsFailed,
		s.PersistWrites, s.PersistFailures,
		s.AuditPublished, s.AuditDropped,
		s.HTTPRequests, s.HTTPDuration,
	)
	return s
}

// Registerer exposes the underlying registerer so subsystems with
// their own collectors (for example the badger adapter) can attach.
func (s *Set) Registerer() prometheus.Registerer { return s.registry }

// Handler serves the registry in the Prometheus text format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
