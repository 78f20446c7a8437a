// Package boltstore is the embedded ledger backend on top of bbolt. Every
// RunInTransaction scope is a single read-write bolt transaction, so scopes are
// serialized and see a consistent snapshot.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketAccounts = "accounts"
	BucketTxns     = "txns"
)

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the database at dbPath and initializes buckets.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketAccounts, BucketTxns} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Accounts returns account access where every call is its own bolt transaction.
func (s *Store) Accounts() ledger.AccountStore { return accounts{run: s.run} }

// Txns returns record access where every call is its own bolt transaction.
func (s *Store) Txns() ledger.TxnStore { return txns{run: s.run} }

// RunInTransaction implements ledger.Store. An error from work makes bbolt
// roll the transaction back.
func (s *Store) RunInTransaction(ctx context.Context, work func(ctx context.Context, scope ledger.Scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return work(ctx, scope{run: bound(tx)})
	})
}

// runner executes fn in a bolt transaction, writable when write is set.
type runner func(write bool, fn func(tx *bolt.Tx) error) error

func (s *Store) run(write bool, fn func(tx *bolt.Tx) error) error {
	if write {
		return s.db.Update(fn)
	}
	return s.db.View(fn)
}

// bound runs everything inside an already open transaction.
func bound(tx *bolt.Tx) runner {
	return func(_ bool, fn func(tx *bolt.Tx) error) error {
		return fn(tx)
	}
}

type scope struct {
	run runner
}

func (sc scope) Accounts() ledger.AccountStore { return accounts{run: sc.run} }
func (sc scope) Txns() ledger.TxnStore         { return txns{run: sc.run} }

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", name)
	}
	return b, nil
}

type accounts struct {
	run runner
}

func (a accounts) Create(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account.Balance.IsNegative() {
		return nil, ledger.ErrConstraintViolation
	}

	created := &ledger.Account{AccountNum: account.AccountNum, Balance: account.Balance}
	err := a.run(true, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		key := []byte(account.AccountNum)
		if b.Get(key) != nil {
			return fmt.Errorf("account %s: %w", account.AccountNum, ledger.ErrDuplicateKey)
		}
		return putJSON(b, key, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (a accounts) FindByAccountNum(ctx context.Context, accountNum string) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var account ledger.Account
	err := a.run(false, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		data := b.Get([]byte(accountNum))
		if data == nil {
			return ledger.ErrNotFound
		}
		return json.Unmarshal(data, &account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (a accounts) IncrementBalance(ctx context.Context, accountNum string, delta decimal.Decimal) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var matched int64
	err := a.run(true, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		key := []byte(accountNum)
		data := b.Get(key)
		if data == nil {
			return nil
		}

		var account ledger.Account
		if err := json.Unmarshal(data, &account); err != nil {
			return fmt.Errorf("failed to unmarshal account %s: %w", accountNum, err)
		}
		next := account.Balance.Add(delta)
		if next.IsNegative() {
			return ledger.ErrConstraintViolation
		}
		account.Balance = next
		if err := putJSON(b, key, &account); err != nil {
			return err
		}
		matched = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

type txns struct {
	run runner
}

func (t txns) Insert(ctx context.Context, txn *ledger.Txn) (*ledger.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := txn.Clone()
	err := t.run(true, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTxns)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to generate ID: %w", err)
		}
		stored.ID = strconv.FormatUint(seq, 10)
		return putJSON(b, itob(int64(seq)), stored)
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (t txns) FindByID(ctx context.Context, id string) (*ledger.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var txn ledger.Txn
	err = t.run(false, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTxns)
		if err != nil {
			return err
		}
		data := b.Get(key)
		if data == nil {
			return ledger.ErrNotFound
		}
		return json.Unmarshal(data, &txn)
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (t txns) UpdateStatus(ctx context.Context, id string, status ledger.Status, reason ledger.ErrorReason) (*ledger.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var txn ledger.Txn
	err = t.run(true, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTxns)
		if err != nil {
			return err
		}
		data := b.Get(key)
		if data == nil {
			return ledger.ErrNotFound
		}
		if err := json.Unmarshal(data, &txn); err != nil {
			return fmt.Errorf("failed to unmarshal transaction %s: %w", id, err)
		}
		if txn.Status != ledger.StatusPending {
			return ledger.ErrInvalidTransition
		}

		txn.Status = status
		if reason != "" {
			txn.ErrorReason = reason
		}
		return putJSON(b, key, &txn)
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (t txns) List(ctx context.Context, filter ledger.TxnFilter) ([]*ledger.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*ledger.Txn
	err := t.run(false, func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketTxns)
		if err != nil {
			return err
		}
		// Keys are big-endian sequence numbers, so ForEach walks in insert order.
		return b.ForEach(func(_, v []byte) error {
			var txn ledger.Txn
			if err := json.Unmarshal(v, &txn); err != nil {
				return fmt.Errorf("failed to unmarshal transaction: %w", err)
			}
			if filter.Matches(&txn) {
				out = append(out, &txn)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
	return out, nil
}

func putJSON(b *bolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return b.Put(key, data)
}

func parseID(id string) ([]byte, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidID, id)
	}
	return itob(n), nil
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
