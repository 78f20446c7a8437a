// Package ledger implements the ledger transaction engine: the data model, the
// error taxonomy, the balance update sequencer and the coordinator that applies
// a transaction's entries atomically and finalizes its status.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transaction record.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ErrorReason explains why a transaction or account operation failed.
type ErrorReason string

const (
	ReasonAccountNotFound     ErrorReason = "ACCOUNT_NOT_FOUND"
	ReasonInsufficientBalance ErrorReason = "INSUFFICIENT_BALANCE"
	ReasonDuplicateAccount    ErrorReason = "DUPLICATE_ACCOUNT"
)

// Account is a balance holder keyed by its account number.
type Account struct {
	AccountNum string          `json:"accountNum"`
	Balance    decimal.Decimal `json:"balance"`
}

// TxnEntry is one signed balance adjustment. Negative amounts debit the
// account, positive amounts credit it.
type TxnEntry struct {
	AccountNum string          `json:"accountNum"`
	Amount     decimal.Decimal `json:"amount"`
}

// Txn is the auditable record of one attempt to move money.
type Txn struct {
	ID              string      `json:"id,omitempty"`
	Entries         []TxnEntry  `json:"entries"`
	Status          Status      `json:"status"`
	TransactionDate time.Time   `json:"transactionDate"`
	ErrorReason     ErrorReason `json:"errorReason,omitempty"`
}

// NewTxn returns an unsaved PENDING transaction stamped with the current time.
func NewTxn(entries ...TxnEntry) *Txn {
	txn := &Txn{
		Entries:         make([]TxnEntry, 0, len(entries)),
		Status:          StatusPending,
		TransactionDate: time.Now().UTC(),
	}
	txn.Entries = append(txn.Entries, entries...)
	return txn
}

// AddEntry appends an entry, preserving insertion order.
func (t *Txn) AddEntry(accountNum string, amount decimal.Decimal) {
	t.Entries = append(t.Entries, TxnEntry{AccountNum: accountNum, Amount: amount})
}

// Net returns the sum of all entry amounts. A zero net means the transaction is
// a balanced double entry.
func (t *Txn) Net() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t.Entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// Clone returns a deep copy so stores never share entry slices with callers.
func (t *Txn) Clone() *Txn {
	if t == nil {
		return nil
	}
	c := *t
	c.Entries = append([]TxnEntry(nil), t.Entries...)
	return &c
}

// Debit builds a single-leg transaction that takes amount out of accountNum.
func Debit(accountNum string, amount decimal.Decimal) *Txn {
	return NewTxn(TxnEntry{AccountNum: accountNum, Amount: amount.Neg()})
}

// Credit builds a single-leg transaction that adds amount to accountNum.
func Credit(accountNum string, amount decimal.Decimal) *Txn {
	return NewTxn(TxnEntry{AccountNum: accountNum, Amount: amount})
}

// Transfer builds a balanced two-leg transaction moving amount from one
// account to another. The debit leg is applied first.
func Transfer(from, to string, amount decimal.Decimal) *Txn {
	return NewTxn(
		TxnEntry{AccountNum: from, Amount: amount.Neg()},
		TxnEntry{AccountNum: to, Amount: amount},
	)
}

// TxnFilter narrows a transaction listing.
type TxnFilter struct {
	Status *Status
}

// Matches reports whether txn passes the filter.
func (f TxnFilter) Matches(txn *Txn) bool {
	if f.Status != nil && txn.Status != *f.Status {
		return false
	}
	return true
}
