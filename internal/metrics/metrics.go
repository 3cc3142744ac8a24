// Package metrics exposes Prometheus counters for ledger operations, HTTP
// latency and file cleanup.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accounting/internal/core"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	ledgerOps    *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	fileCleanups *prometheus.CounterVec
	rateLimited  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounting_ledger_operations_total",
				Help: "Ledger store calls by operation, entry kind and outcome",
			},
			[]string{"operation", "kind", "result"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounting_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"method", "route", "status"},
		),
		fileCleanups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounting_file_cleanup_total",
				Help: "Orphaned document files handled by the cleanup worker",
			},
			[]string{"source", "result"},
		),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounting_rate_limited_total",
			Help: "Write requests rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Result maps an error to the outcome label used on ledger counters.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, core.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, core.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, core.ErrIO):
		return "io_error"
	default:
		return "error"
	}
}

func (m *Metrics) LedgerOp(op, kind string, err error) {
	m.ledgerOps.WithLabelValues(op, kind, Result(err)).Inc()
}

// ObserveHTTP records a finished request under its route pattern so ids in
// the path do not explode the label space.
func (m *Metrics) ObserveHTTP(r *http.Request, status int, elapsed time.Duration) {
	route := "unmatched"
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern()
	}
	m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// FileCleanup counts n files removed or failed by source ("queue" or "sweep").
func (m *Metrics) FileCleanup(source, result string, n int) {
	if n <= 0 {
		return
	}
	m.fileCleanups.WithLabelValues(source, result).Add(float64(n))
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}
