package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pigeonworks-llc/txn-ledger/pkg/idempotency"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client-chosen key for write requests.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, error, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            error,
		ErrorDescription: description,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Infow("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// IdempotencyGuard reserves, completes and releases Idempotency-Key values.
type IdempotencyGuard interface {
	Begin(ctx context.Context, key string) (*idempotency.Response, error)
	Complete(ctx context.Context, key string, resp idempotency.Response) error
	Release(ctx context.Context, key string) error
}

// IdempotencyCounter observes idempotency outcomes.
type IdempotencyCounter interface {
	Idempotency(outcome string)
}

// captureWriter buffers the response so it can be stored after the handler
// finishes.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the stored response of a repeated Idempotency-Key and
// answers 409 while the first request with that key is still running.
// Requests without the header pass through. Only final outcomes (2xx and 422)
// are stored; anything else releases the key so the client may retry.
func Idempotent(guard IdempotencyGuard, counter IdempotencyCounter, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || guard == nil {
				next.ServeHTTP(w, r)
				return
			}
			scoped := r.Method + " " + r.URL.Path + " " + key

			stored, err := guard.Begin(r.Context(), scoped)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				count(counter, "conflict")
				writeJSONError(w, http.StatusConflict, "idempotency_conflict", "A request with this Idempotency-Key is still in progress")
				return
			case err != nil:
				logger.Errorw("idempotency guard unavailable", "error", err)
				writeJSONError(w, http.StatusServiceUnavailable, "idempotency_unavailable", "Idempotency store is unavailable")
				return
			case stored != nil:
				count(counter, "replayed")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			count(counter, "reserved")
			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			// The request context may already be canceled; bookkeeping must
			// still reach Redis.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
			defer cancel()

			if cw.status == http.StatusUnprocessableEntity || (cw.status >= 200 && cw.status < 300) {
				resp := idempotency.Response{Status: cw.status, Body: json.RawMessage(bytes.TrimSpace(cw.body.Bytes()))}
				if err := guard.Complete(ctx, scoped, resp); err != nil {
					logger.Errorw("failed to store idempotent response", "key", key, "error", err)
				}
				return
			}
			if err := guard.Release(ctx, scoped); err != nil {
				logger.Errorw("failed to release idempotency key", "key", key, "error", err)
			}
		})
	}
}

func count(counter IdempotencyCounter, outcome string) {
	if counter != nil {
		counter.Idempotency(outcome)
	}
}
