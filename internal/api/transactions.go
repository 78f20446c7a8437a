package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"go.uber.org/zap"
)

// EntriesRequest is the body of POST /transactions.
type EntriesRequest struct {
	Entries []ledger.TxnEntry `json:"entries"`
}

// TxnsResponse is the body of GET /transactions.
type TxnsResponse struct {
	Transactions []*ledger.Txn `json:"transactions"`
}

// TxnsHandler handles transaction record endpoints.
type TxnsHandler struct {
	svc    *ledger.Service
	logger *zap.SugaredLogger
}

// NewTxnsHandler creates a new TxnsHandler.
func NewTxnsHandler(svc *ledger.Service, logger *zap.SugaredLogger) *TxnsHandler {
	return &TxnsHandler{svc: svc, logger: logger}
}

// Submit handles POST /transactions. Entries are applied in the given order;
// an empty list is a valid no-op transaction.
func (h *TxnsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req EntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	for _, e := range req.Entries {
		if strings.TrimSpace(e.AccountNum) == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Every entry needs an accountNum")
			return
		}
	}

	done, err := h.svc.Submit(r.Context(), ledger.NewTxn(req.Entries...))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

// Get handles GET /transactions/{id}.
func (h *TxnsHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.GetTxn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// List handles GET /transactions.
func (h *TxnsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter ledger.TxnFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := ledger.Status(strings.ToUpper(s))
		if !status.Valid() {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid status")
			return
		}
		filter.Status = &status
	}

	txns, err := h.svc.ListTxns(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	if txns == nil {
		txns = []*ledger.Txn{}
	}
	writeJSON(w, http.StatusOK, TxnsResponse{Transactions: txns})
}
