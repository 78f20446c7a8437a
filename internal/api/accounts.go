package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAccountRequest is the body of POST /account.
type CreateAccountRequest struct {
	AccountNum string          `json:"accountNum"`
	Balance    decimal.Decimal `json:"balance"`
}

// AmountRequest is the body of the debit and credit endpoints.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// TransferRequest is the body of POST /account/{accountNum}/transfer.
type TransferRequest struct {
	To     string           `json:"to"`
	Amount *decimal.Decimal `json:"amount"`
}

// AccountsHandler handles account endpoints and the single-account
// transaction shortcuts.
type AccountsHandler struct {
	svc    *ledger.Service
	logger *zap.SugaredLogger
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(svc *ledger.Service, logger *zap.SugaredLogger) *AccountsHandler {
	return &AccountsHandler{svc: svc, logger: logger}
}

// Create handles POST /account.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	req.AccountNum = strings.TrimSpace(req.AccountNum)

	account, err := h.svc.CreateAccount(r.Context(), ledger.Account{AccountNum: req.AccountNum, Balance: req.Balance})
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Get handles GET /account/{accountNum}.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), chi.URLParam(r, "accountNum"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// Debit handles POST /account/{accountNum}/debit.
func (h *AccountsHandler) Debit(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	h.submit(w, r, ledger.Debit(chi.URLParam(r, "accountNum"), amount))
}

// Credit handles POST /account/{accountNum}/credit.
func (h *AccountsHandler) Credit(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	h.submit(w, r, ledger.Credit(chi.URLParam(r, "accountNum"), amount))
}

// Transfer handles POST /account/{accountNum}/transfer.
func (h *AccountsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if strings.TrimSpace(req.To) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing to")
		return
	}
	if !validAmount(w, req.Amount) {
		return
	}

	h.submit(w, r, ledger.Transfer(chi.URLParam(r, "accountNum"), req.To, *req.Amount))
}

func (h *AccountsHandler) submit(w http.ResponseWriter, r *http.Request, txn *ledger.Txn) {
	done, err := h.svc.Submit(r.Context(), txn)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return decimal.Zero, false
	}
	if !validAmount(w, req.Amount) {
		return decimal.Zero, false
	}
	return *req.Amount, true
}

func validAmount(w http.ResponseWriter, amount *decimal.Decimal) bool {
	if amount == nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing amount")
		return false
	}
	if amount.IsNegative() {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Amount must not be negative")
		return false
	}
	return true
}
