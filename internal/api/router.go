// Package api is the HTTP transport of the ledger service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/metrics"
	"go.uber.org/zap"
)

// Deps are the collaborators of the router. Metrics and Guard are optional.
type Deps struct {
	Service *ledger.Service
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
	Guard   IdempotencyGuard
	Timeout time.Duration
}

// NewRouter wires the middleware stack and all routes.
func NewRouter(d Deps) chi.Router {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	accountsHandler := NewAccountsHandler(d.Service, logger)
	txnsHandler := NewTxnsHandler(d.Service, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.Timeout(timeout))

	writes := Idempotent(d.Guard, d.Metrics, logger)

	r.Route("/account", func(r chi.Router) {
		r.With(writes).Post("/", accountsHandler.Create)
		r.Get("/{accountNum}", accountsHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(writes)
			r.Post("/{accountNum}/debit", accountsHandler.Debit)
			r.Post("/{accountNum}/credit", accountsHandler.Credit)
			r.Post("/{accountNum}/transfer", accountsHandler.Transfer)
		})
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", txnsHandler.List)
		r.With(writes).Post("/", txnsHandler.Submit)
		r.Get("/{id}", txnsHandler.Get)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	return r
}
