package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

// timeLayout is fixed width so stored dates sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LedgerStore implements ledger.Store on a SQLite connection. A
// RunInTransaction scope is one IMMEDIATE transaction.
type LedgerStore struct {
	conn *Connection
}

// NewLedgerStore creates a ledger store over conn. Closing the store closes
// the connection.
func NewLedgerStore(conn *Connection) *LedgerStore {
	return &LedgerStore{conn: conn}
}

// Accounts returns account access outside any scope.
func (s *LedgerStore) Accounts() ledger.AccountStore { return accounts{s.view()} }

// Txns returns record access outside any scope.
func (s *LedgerStore) Txns() ledger.TxnStore { return txns{s.view()} }

// RunInTransaction implements ledger.Store.
func (s *LedgerStore) RunInTransaction(ctx context.Context, work func(ctx context.Context, scope ledger.Scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		return work(ctx, txView(tx))
	})
}

// Close closes the underlying connection.
func (s *LedgerStore) Close() error {
	return s.conn.Close()
}

// view binds queries to a querier. atomic runs multi-statement writes so they
// commit together: in a fresh transaction outside a scope, directly inside one.
type view struct {
	q      querier
	atomic func(ctx context.Context, fn func(q querier) error) error
}

func (s *LedgerStore) view() view {
	return view{
		q: s.conn.db,
		atomic: func(ctx context.Context, fn func(q querier) error) error {
			return s.conn.Transaction(ctx, func(tx *sql.Tx) error { return fn(tx) })
		},
	}
}

func txView(tx *sql.Tx) view {
	return view{
		q: tx,
		atomic: func(_ context.Context, fn func(q querier) error) error {
			return fn(tx)
		},
	}
}

func (v view) Accounts() ledger.AccountStore { return accounts{v} }
func (v view) Txns() ledger.TxnStore         { return txns{v} }

type accounts struct {
	view
}

func (a accounts) Create(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	_, err := a.q.ExecContext(ctx,
		`INSERT INTO accounts (account_num, balance) VALUES (?, ?)`,
		account.AccountNum, account.Balance.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", account.AccountNum, mapError(err))
	}
	return &ledger.Account{AccountNum: account.AccountNum, Balance: account.Balance}, nil
}

func (a accounts) FindByAccountNum(ctx context.Context, accountNum string) (*ledger.Account, error) {
	return findAccount(ctx, a.q, accountNum)
}

func (a accounts) IncrementBalance(ctx context.Context, accountNum string, delta decimal.Decimal) (int64, error) {
	var matched int64
	err := a.atomic(ctx, func(q querier) error {
		account, err := findAccount(ctx, q, accountNum)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		next := account.Balance.Add(delta)
		if next.IsNegative() {
			return ledger.ErrConstraintViolation
		}

		result, err := q.ExecContext(ctx,
			`UPDATE accounts SET balance = ? WHERE account_num = ?`,
			next.String(), accountNum,
		)
		if err != nil {
			return fmt.Errorf("failed to update balance of %s: %w", accountNum, mapError(err))
		}
		matched, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

func findAccount(ctx context.Context, q querier, accountNum string) (*ledger.Account, error) {
	var balance string
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_num = ?`, accountNum,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountNum, err)
	}

	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for %s: %w", accountNum, err)
	}
	return &ledger.Account{AccountNum: accountNum, Balance: amount}, nil
}

type txns struct {
	view
}

func (t txns) Insert(ctx context.Context, txn *ledger.Txn) (*ledger.Txn, error) {
	stored := txn.Clone()
	stored.ID = uuid.NewString()

	err := t.atomic(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO transactions (id, status, error_reason, transaction_date) VALUES (?, ?, ?, ?)`,
			stored.ID, string(stored.Status), string(stored.ErrorReason),
			stored.TransactionDate.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", mapError(err))
		}

		for i, entry := range stored.Entries {
			_, err := q.ExecContext(ctx,
				`INSERT INTO txn_entries (txn_id, position, account_num, amount) VALUES (?, ?, ?, ?)`,
				stored.ID, i, entry.AccountNum, entry.Amount.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert entry %d: %w", i, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (t txns) FindByID(ctx context.Context, id string) (*ledger.Txn, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidID, id)
	}
	return findTxn(ctx, t.q, id)
}

func (t txns) UpdateStatus(ctx context.Context, id string, status ledger.Status, reason ledger.ErrorReason) (*ledger.Txn, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidID, id)
	}

	var updated *ledger.Txn
	err := t.atomic(ctx, func(q querier) error {
		result, err := q.ExecContext(ctx,
			`UPDATE transactions
			 SET status = ?, error_reason = CASE WHEN ? = '' THEN error_reason ELSE ? END
			 WHERE id = ? AND status = 'PENDING'`,
			string(status), string(reason), string(reason), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", id, mapError(err))
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			if _, err := findTxn(ctx, q, id); err != nil {
				return err
			}
			return ledger.ErrInvalidTransition
		}

		updated, err = findTxn(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (t txns) List(ctx context.Context, filter ledger.TxnFilter) ([]*ledger.Txn, error) {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return queryTxns(ctx, t.q, `WHERE ? = '' OR t.status = ?`, status, status)
}

func findTxn(ctx context.Context, q querier, id string) (*ledger.Txn, error) {
	found, err := queryTxns(ctx, q, `WHERE t.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ledger.ErrNotFound
	}
	return found[0], nil
}

// queryTxns loads records with their entries in one pass. Rows arrive grouped
// by transaction, entries in position order.
func queryTxns(ctx context.Context, q querier, where string, args ...any) ([]*ledger.Txn, error) {
	query := `
		SELECT t.id, t.status, t.error_reason, t.transaction_date, e.account_num, e.amount
		FROM transactions t
		LEFT JOIN txn_entries e ON e.txn_id = t.id
		` + where + `
		ORDER BY t.transaction_date, t.seq, e.position
	`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Txn
	var current *ledger.Txn
	for rows.Next() {
		var (
			id, status, reason, date string
			accountNum, amount       sql.NullString
		)
		if err := rows.Scan(&id, &status, &reason, &date, &accountNum, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if current == nil || current.ID != id {
			ts, err := time.Parse(timeLayout, date)
			if err != nil {
				return nil, fmt.Errorf("corrupt transaction date for %s: %w", id, err)
			}
			current = &ledger.Txn{
				ID:              id,
				Entries:         []ledger.TxnEntry{},
				Status:          ledger.Status(status),
				TransactionDate: ts,
				ErrorReason:     ledger.ErrorReason(reason),
			}
			out = append(out, current)
		}

		if accountNum.Valid {
			value, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt entry amount for %s: %w", id, err)
			}
			current.Entries = append(current.Entries, ledger.TxnEntry{AccountNum: accountNum.String, Amount: value})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return out, nil
}

// mapError translates SQLite constraint failures into ledger sentinels.
func mapError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintCheck:
		return fmt.Errorf("%w: %v", ledger.ErrConstraintViolation, err)
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", ledger.ErrDuplicateKey, err)
	}
	return err
}
