package client

import (
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest is the body of POST /account.
type CreateAccountRequest struct {
	AccountNum string          `json:"accountNum"`
	Balance    decimal.Decimal `json:"balance"`
}

// AmountRequest is the body of the debit and credit endpoints.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest is the body of POST /account/{from}/transfer.
type TransferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// EntriesRequest is the body of POST /transactions.
type EntriesRequest struct {
	Entries []ledger.TxnEntry `json:"entries"`
}

// TxnsResponse is the body of GET /transactions.
type TxnsResponse struct {
	Transactions []*ledger.Txn `json:"transactions"`
}

// ErrorResponse represents an error response from the ledger API.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
