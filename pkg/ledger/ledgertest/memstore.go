// Package ledgertest provides an in-memory ledger.Store and a contract suite
// that every backend runs in its own tests.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
)

// MemStore is an in-memory ledger.Store. Transactions are serialized and run
// against a private copy of the state that replaces the live state on commit.
//
// FailIncrement and FailUpdateStatus inject store failures; set them before
// the store is shared between goroutines.
type MemStore struct {
	mu    sync.Mutex
	state *memState

	FailIncrement    func(accountNum string) error
	FailUpdateStatus func(id string, status ledger.Status) error
}

type memState struct {
	accounts map[string]decimal.Decimal
	txns     map[string]*ledger.Txn
	nextID   int64
}

func (st *memState) clone() *memState {
	c := &memState{
		accounts: make(map[string]decimal.Decimal, len(st.accounts)),
		txns:     make(map[string]*ledger.Txn, len(st.txns)),
		nextID:   st.nextID,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.txns {
		c.txns[k] = v.Clone()
	}
	return c
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		state: &memState{
			accounts: make(map[string]decimal.Decimal),
			txns:     make(map[string]*ledger.Txn),
		},
	}
}

// Accounts returns non-transactional account access.
func (s *MemStore) Accounts() ledger.AccountStore { return lockedMem{s} }

// Txns returns non-transactional transaction access.
func (s *MemStore) Txns() ledger.TxnStore { return lockedMem{s} }

// RunInTransaction implements ledger.Store.
func (s *MemStore) RunInTransaction(ctx context.Context, work func(ctx context.Context, scope ledger.Scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := work(ctx, &memTx{st: working, store: s}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close implements ledger.Store.
func (s *MemStore) Close() error { return nil }

// memTx operates on a state without locking. It implements both collaborator
// interfaces and ledger.Scope.
type memTx struct {
	st    *memState
	store *MemStore
}

func (m *memTx) Accounts() ledger.AccountStore { return m }
func (m *memTx) Txns() ledger.TxnStore         { return m }

func (m *memTx) Create(_ context.Context, account *ledger.Account) (*ledger.Account, error) {
	if _, ok := m.st.accounts[account.AccountNum]; ok {
		return nil, fmt.Errorf("account %s: %w", account.AccountNum, ledger.ErrDuplicateKey)
	}
	if account.Balance.IsNegative() {
		return nil, ledger.ErrConstraintViolation
	}
	m.st.accounts[account.AccountNum] = account.Balance
	return &ledger.Account{AccountNum: account.AccountNum, Balance: account.Balance}, nil
}

func (m *memTx) FindByAccountNum(_ context.Context, accountNum string) (*ledger.Account, error) {
	balance, ok := m.st.accounts[accountNum]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &ledger.Account{AccountNum: accountNum, Balance: balance}, nil
}

func (m *memTx) IncrementBalance(_ context.Context, accountNum string, delta decimal.Decimal) (int64, error) {
	if m.store.FailIncrement != nil {
		if err := m.store.FailIncrement(accountNum); err != nil {
			return 0, err
		}
	}
	balance, ok := m.st.accounts[accountNum]
	if !ok {
		return 0, nil
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return 0, ledger.ErrConstraintViolation
	}
	m.st.accounts[accountNum] = next
	return 1, nil
}

func (m *memTx) Insert(_ context.Context, txn *ledger.Txn) (*ledger.Txn, error) {
	m.st.nextID++
	stored := txn.Clone()
	stored.ID = strconv.FormatInt(m.st.nextID, 10)
	m.st.txns[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *memTx) FindByID(_ context.Context, id string) (*ledger.Txn, error) {
	txn, ok := m.st.txns[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return txn.Clone(), nil
}

func (m *memTx) UpdateStatus(_ context.Context, id string, status ledger.Status, reason ledger.ErrorReason) (*ledger.Txn, error) {
	if m.store.FailUpdateStatus != nil {
		if err := m.store.FailUpdateStatus(id, status); err != nil {
			return nil, err
		}
	}
	txn, ok := m.st.txns[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	if txn.Status != ledger.StatusPending {
		return nil, ledger.ErrInvalidTransition
	}
	txn.Status = status
	if reason != "" {
		txn.ErrorReason = reason
	}
	return txn.Clone(), nil
}

func (m *memTx) List(_ context.Context, filter ledger.TxnFilter) ([]*ledger.Txn, error) {
	out := make([]*ledger.Txn, 0, len(m.st.txns))
	for _, txn := range m.st.txns {
		if filter.Matches(txn) {
			out = append(out, txn.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TransactionDate.Equal(out[j].TransactionDate) {
			a, _ := strconv.ParseInt(out[i].ID, 10, 64)
			b, _ := strconv.ParseInt(out[j].ID, 10, 64)
			return a < b
		}
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
	return out, nil
}

// lockedMem gives each call its own critical section on the live state.
type lockedMem struct {
	s *MemStore
}

func (l lockedMem) live() *memTx { return &memTx{st: l.s.state, store: l.s} }

func (l lockedMem) Create(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().Create(ctx, account)
}

func (l lockedMem) FindByAccountNum(ctx context.Context, accountNum string) (*ledger.Account, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().FindByAccountNum(ctx, accountNum)
}

func (l lockedMem) IncrementBalance(ctx context.Context, accountNum string, delta decimal.Decimal) (int64, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().IncrementBalance(ctx, accountNum, delta)
}

func (l lockedMem) Insert(ctx context.Context, txn *ledger.Txn) (*ledger.Txn, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().Insert(ctx, txn)
}

func (l lockedMem) FindByID(ctx context.Context, id string) (*ledger.Txn, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().FindByID(ctx, id)
}

func (l lockedMem) UpdateStatus(ctx context.Context, id string, status ledger.Status, reason ledger.ErrorReason) (*ledger.Txn, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().UpdateStatus(ctx, id, status, reason)
}

func (l lockedMem) List(ctx context.Context, filter ledger.TxnFilter) ([]*ledger.Txn, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.live().List(ctx, filter)
}
