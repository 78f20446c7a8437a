package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountStore is the durable account collaborator.
type AccountStore interface {
	// Create inserts a new account. It returns ErrDuplicateKey when the account
	// number is already taken.
	Create(ctx context.Context, account *Account) (*Account, error)

	// FindByAccountNum returns ErrNotFound when no account matches.
	FindByAccountNum(ctx context.Context, accountNum string) (*Account, error)

	// IncrementBalance atomically adds delta to the account balance and returns
	// the number of accounts matched (0 or 1). A mutation that would leave the
	// balance negative is rejected with ErrConstraintViolation and not applied.
	IncrementBalance(ctx context.Context, accountNum string, delta decimal.Decimal) (int64, error)
}

// TxnStore is the durable transaction record collaborator.
type TxnStore interface {
	// Insert persists txn and returns a copy carrying the assigned id.
	Insert(ctx context.Context, txn *Txn) (*Txn, error)

	// FindByID returns ErrNotFound when the record does not exist.
	FindByID(ctx context.Context, id string) (*Txn, error)

	// UpdateStatus moves a PENDING record to status, setting reason when
	// non-empty, and returns the updated record. It returns ErrNotFound for an
	// unknown id and ErrInvalidTransition when the record is already terminal.
	UpdateStatus(ctx context.Context, id string, status Status, reason ErrorReason) (*Txn, error)

	// List returns matching records ordered by transaction date.
	List(ctx context.Context, filter TxnFilter) ([]*Txn, error)
}

// Scope is a handle on a set of stores. Inside RunInTransaction every call made
// through the handle commits or rolls back together.
type Scope interface {
	Accounts() AccountStore
	Txns() TxnStore
}

// Store is a backend. Calling Accounts or Txns on the Store itself gives
// non-transactional access, each call durable on its own.
type Store interface {
	Scope

	// RunInTransaction opens an atomic, snapshot-isolated scope, runs work with
	// a handle bound to it and commits when work returns nil. Any error from
	// work rolls back every write issued through the handle and is returned
	// as-is.
	RunInTransaction(ctx context.Context, work func(ctx context.Context, scope Scope) error) error

	Close() error
}
