// Package metrics exposes Prometheus metrics for transaction outcomes and
// HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusError labels executions that ended unclassified.
const statusError = "ERROR"

// Metrics holds the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	txnTotal          *prometheus.CounterVec
	txnDuration       *prometheus.HistogramVec
	idempotencyTotal  *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates collectors on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		txnTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Executed ledger transactions by final status and error reason.",
		}, []string{"status", "reason"}),
		txnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Histogram of atomic scope durations by final status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		idempotencyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_idempotency_total",
			Help: "Idempotency-Key outcomes on write endpoints.",
		}, []string{"outcome"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.txnTotal,
		m.txnDuration,
		m.idempotencyTotal,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// ObserveTxn implements ledger.Recorder.
func (m *Metrics) ObserveTxn(status ledger.Status, reason ledger.ErrorReason, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := string(status)
	if label == "" {
		label = statusError
	}
	m.txnTotal.WithLabelValues(label, string(reason)).Inc()
	m.txnDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// Idempotency counts an Idempotency-Key outcome such as "replayed".
func (m *Metrics) Idempotency(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyTotal.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labeled by the chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
