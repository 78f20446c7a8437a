package ledger

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Backends return these (possibly wrapped) so the engine
// can classify failures without knowing the driver.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned when an id cannot belong to the store.
	ErrInvalidID = errors.New("invalid ID")

	// ErrConstraintViolation is returned when the store rejects a mutation that
	// would break one of its constraints, such as a negative balance.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrDuplicateKey is returned when an insert collides with an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidTransition is returned when a status update targets a record
	// that is no longer PENDING.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidAccount is returned when an account cannot be opened as given.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrUnsavedTxn is returned when execution is attempted on a transaction
	// that has not been persisted yet.
	ErrUnsavedTxn = errors.New("transaction has no id")

	// ErrFailureNotRecorded is joined to a TransactionFailed error when the
	// FAILED record could not be persisted and the stored record is still
	// PENDING.
	ErrFailureNotRecorded = errors.New("transaction failure not recorded")
)

// Kind tags a domain error.
type Kind int

const (
	KindUnclassified Kind = iota
	KindAccountNotFound
	KindInsufficientBalance
	KindDuplicateAccount
	KindTransactionFailed
)

func (k Kind) String() string {
	switch k {
	case KindAccountNotFound:
		return "AccountNotFound"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindDuplicateAccount:
		return "DuplicateAccount"
	case KindTransactionFailed:
		return "TransactionFailed"
	default:
		return "Unclassified"
	}
}

// Error is the closed set of domain failures. Txn is set only for
// KindTransactionFailed and carries the record in its FAILED state.
type Error struct {
	Kind       Kind
	AccountNum string
	Reason     ErrorReason
	Txn        *Txn
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAccountNotFound:
		return fmt.Sprintf("account %q not found", e.AccountNum)
	case KindInsufficientBalance:
		return fmt.Sprintf("insufficient balance in account %q", e.AccountNum)
	case KindDuplicateAccount:
		return fmt.Sprintf("account %q already exists", e.AccountNum)
	case KindTransactionFailed:
		id := ""
		if e.Txn != nil {
			id = e.Txn.ID
		}
		return fmt.Sprintf("transaction %s failed due to %s", id, e.Reason)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unclassified ledger error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnclassified when there is none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnclassified
}

// FailedTxn extracts the FAILED record from a TransactionFailed error.
func FailedTxn(err error) (*Txn, bool) {
	var le *Error
	if errors.As(err, &le) && le.Kind == KindTransactionFailed && le.Txn != nil {
		return le.Txn, true
	}
	return nil, false
}

func accountNotFound(accountNum string) *Error {
	return &Error{
		Kind:       KindAccountNotFound,
		AccountNum: accountNum,
		Reason:     ReasonAccountNotFound,
		Err:        ErrNotFound,
	}
}

func insufficientBalance(accountNum string, cause error) *Error {
	return &Error{
		Kind:       KindInsufficientBalance,
		AccountNum: accountNum,
		Reason:     ReasonInsufficientBalance,
		Err:        cause,
	}
}

func duplicateAccount(accountNum string, cause error) *Error {
	return &Error{
		Kind:       KindDuplicateAccount,
		AccountNum: accountNum,
		Reason:     ReasonDuplicateAccount,
		Err:        cause,
	}
}

func transactionFailed(txn *Txn, cause *Error) *Error {
	return &Error{
		Kind:       KindTransactionFailed,
		AccountNum: cause.AccountNum,
		Reason:     cause.Reason,
		Txn:        txn,
		Err:        cause,
	}
}
