package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultFailedWriteAttempts = 3
	defaultFailedWriteDelay    = 50 * time.Millisecond
	defaultFailedWriteTimeout  = 10 * time.Second
)

// Recorder observes execution outcomes. reason is empty unless status is FAILED;
// status is empty for unclassified failures.
type Recorder interface {
	ObserveTxn(status Status, reason ErrorReason, elapsed time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithFailedWriteRetry sets how many times RecordFailure tries to persist a
// FAILED record and the delay before the second attempt. The delay doubles on
// each further attempt.
func WithFailedWriteRetry(attempts int, delay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.failedWriteAttempts = attempts
		}
		if delay >= 0 {
			s.failedWriteDelay = delay
		}
	}
}

// Service is the ledger transaction coordinator.
type Service struct {
	store               Store
	logger              *zap.SugaredLogger
	recorder            Recorder
	failedWriteAttempts int
	failedWriteDelay    time.Duration
	failedWriteTimeout  time.Duration
}

// NewService creates a coordinator over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:               store,
		logger:              zap.NewNop().Sugar(),
		failedWriteAttempts: defaultFailedWriteAttempts,
		failedWriteDelay:    defaultFailedWriteDelay,
		failedWriteTimeout:  defaultFailedWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount opens a new account. A taken account number yields a
// DuplicateAccount error.
func (s *Service) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	if account.AccountNum == "" {
		return nil, fmt.Errorf("%w: account number is required", ErrInvalidAccount)
	}
	if account.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidAccount)
	}

	created, err := s.store.Accounts().Create(ctx, &account)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicateAccount(account.AccountNum, err)
		}
		if errors.Is(err, ErrConstraintViolation) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Infow("account created", "account_num", created.AccountNum, "balance", created.Balance.String())
	return created, nil
}

// GetAccount looks up an account, returning an AccountNotFound error when absent.
func (s *Service) GetAccount(ctx context.Context, accountNum string) (*Account, error) {
	account, err := s.store.Accounts().FindByAccountNum(ctx, accountNum)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, accountNotFound(accountNum)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// SaveTransaction persists an unsaved PENDING record and returns it with its id.
// The stored record is the audit anchor for the execution that follows.
func (s *Service) SaveTransaction(ctx context.Context, txn *Txn) (*Txn, error) {
	if txn == nil {
		return nil, errors.New("transaction is nil")
	}
	if txn.Status == "" {
		txn.Status = StatusPending
	}
	if txn.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot save a %s transaction", ErrInvalidTransition, txn.Status)
	}
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate = time.Now().UTC()
	}

	saved, err := s.store.Txns().Insert(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.logger.Debugw("transaction saved", "txn_id", saved.ID, "entries", len(saved.Entries))
	return saved, nil
}

// ExecuteTxn applies txn's entries and marks it SUCCESS inside one atomic scope.
//
// txn must already be persisted as PENDING. When an entry fails with
// AccountNotFound or InsufficientBalance the scope is rolled back, txn is
// mutated to FAILED with the matching reason and a TransactionFailed error
// carrying it is returned. The caller persists that record (see
// RecordFailure). Any other failure is returned unclassified and leaves the
// stored record PENDING.
func (s *Service) ExecuteTxn(ctx context.Context, txn *Txn) (*Txn, error) {
	if txn == nil || txn.ID == "" {
		return nil, ErrUnsavedTxn
	}

	start := time.Now()
	var updated *Txn
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, scope Scope) error {
		if _, err := ApplyEntries(ctx, scope.Accounts(), txn.Entries); err != nil {
			return err
		}

		u, err := scope.Txns().UpdateStatus(ctx, txn.ID, StatusSuccess, "")
		if err != nil {
			return fmt.Errorf("failed to finalize transaction %s: %w", txn.ID, err)
		}
		updated = u
		return nil
	})
	elapsed := time.Since(start)

	if err == nil {
		s.observe(StatusSuccess, "", elapsed)
		s.logger.Infow("transaction executed", "txn_id", updated.ID, "entries", len(updated.Entries), "elapsed", elapsed)
		return updated, nil
	}

	var le *Error
	if errors.As(err, &le) && (le.Kind == KindAccountNotFound || le.Kind == KindInsufficientBalance) {
		txn.Status = StatusFailed
		txn.ErrorReason = le.Reason
		s.observe(StatusFailed, le.Reason, elapsed)
		s.logger.Warnw("transaction failed", "txn_id", txn.ID, "reason", le.Reason, "account_num", le.AccountNum)
		return nil, transactionFailed(txn, le)
	}

	s.observe("", "", elapsed)
	s.logger.Errorw("transaction aborted", "txn_id", txn.ID, "error", err)
	return nil, err
}

// RecordFailure persists a FAILED record produced by ExecuteTxn. It is a
// separate, non-transactional write so the audit trail survives the rolled
// back scope. Transient errors are retried; a record that is already terminal
// is returned as stored.
func (s *Service) RecordFailure(ctx context.Context, txn *Txn) (*Txn, error) {
	if txn == nil || txn.ID == "" {
		return nil, ErrUnsavedTxn
	}
	if txn.Status != StatusFailed || txn.ErrorReason == "" {
		return nil, fmt.Errorf("%w: transaction %s is not a classified failure", ErrInvalidTransition, txn.ID)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.failedWriteDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var saved *Txn
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		stored, err := s.store.Txns().UpdateStatus(ctx, txn.ID, StatusFailed, txn.ErrorReason)
		switch {
		case err == nil:
			saved = stored
			return nil
		case errors.Is(err, ErrInvalidTransition):
			stored, err = s.store.Txns().FindByID(ctx, txn.ID)
			if err != nil {
				return backoff.Permanent(err)
			}
			saved = stored
			return nil
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidID):
			return backoff.Permanent(err)
		}
		s.logger.Warnw("failed to record transaction failure", "txn_id", txn.ID, "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.failedWriteAttempts-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to record failure of %s after %d attempts: %w", txn.ID, attempt, err)
	}
	return saved, nil
}

// Submit runs the whole lifecycle: save as PENDING, execute, and persist the
// FAILED record when execution fails for a classified reason. The FAILED write
// ignores cancellation of ctx and is bounded by its own timeout. The returned
// TransactionFailed error carries the stored FAILED record.
func (s *Service) Submit(ctx context.Context, txn *Txn) (*Txn, error) {
	saved, err := s.SaveTransaction(ctx, txn)
	if err != nil {
		return nil, err
	}

	executed, err := s.ExecuteTxn(ctx, saved)
	if err == nil {
		return executed, nil
	}

	failed, ok := FailedTxn(err)
	if !ok {
		return nil, err
	}

	// The FAILED write must outlive a caller that gave up after the scope
	// rolled back.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.failedWriteTimeout)
	defer cancel()
	stored, recErr := s.RecordFailure(recordCtx, failed)
	if recErr != nil {
		s.logger.Errorw("transaction failure not recorded", "txn_id", failed.ID, "error", recErr)
		return nil, errors.Join(err, fmt.Errorf("%w: %w", ErrFailureNotRecorded, recErr))
	}

	var le *Error
	errors.As(err, &le)
	le.Txn = stored
	return nil, le
}

// GetTxn returns a stored transaction.
func (s *Service) GetTxn(ctx context.Context, id string) (*Txn, error) {
	txn, err := s.store.Txns().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// ListTxns returns stored transactions matching filter.
func (s *Service) ListTxns(ctx context.Context, filter TxnFilter) ([]*Txn, error) {
	txns, err := s.store.Txns().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (s *Service) observe(status Status, reason ErrorReason, elapsed time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveTxn(status, reason, elapsed)
	}
}
