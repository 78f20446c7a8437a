package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTxn(t *testing.T) {
	m := New()

	m.ObserveTxn(ledger.StatusSuccess, "", 10*time.Millisecond)
	m.ObserveTxn(ledger.StatusFailed, ledger.ReasonInsufficientBalance, time.Millisecond)
	m.ObserveTxn(ledger.StatusFailed, ledger.ReasonInsufficientBalance, time.Millisecond)
	m.ObserveTxn("", "", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.txnTotal.WithLabelValues("SUCCESS", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.txnTotal.WithLabelValues("FAILED", "INSUFFICIENT_BALANCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txnTotal.WithLabelValues("ERROR", "")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/account/{accountNum}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/account/A", "/account/B"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/account/{accountNum}", "418")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Idempotency("replayed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ledger_idempotency_total{outcome="replayed"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTxn(ledger.StatusSuccess, "", time.Second)
	m.Idempotency("conflict")

	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
