package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestStoreContract(t *testing.T) {
	ledgertest.RunStoreSuite(t, func(t *testing.T) ledger.Store {
		return newTestStore(t)
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	st, err := New(path)
	require.NoError(t, err)
	ledgertest.OpenAccount(t, st, "ACC-1", "42.10")
	saved, err := st.Txns().Insert(context.Background(), ledger.NewTxn())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = New(path)
	require.NoError(t, err)
	defer st.Close()

	ledgertest.RequireBalance(t, st, "ACC-1", "42.1")
	found, err := st.Txns().FindByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)

	next, err := st.Txns().Insert(context.Background(), ledger.NewTxn())
	require.NoError(t, err)
	assert.NotEqual(t, saved.ID, next.ID)
}

func TestInvalidID(t *testing.T) {
	st := newTestStore(t)

	for _, id := range []string{"", "abc", "0", "-3"} {
		_, err := st.Txns().FindByID(context.Background(), id)
		assert.ErrorIs(t, err, ledger.ErrInvalidID, "id %q", id)
	}
}

func TestItob(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, itob(258))
}

// cancelAfterScope cancels the caller's context as soon as an atomic scope
// returns, like a client that hangs up while its transaction is rolled back.
type cancelAfterScope struct {
	*Store
	cancel context.CancelFunc
}

func (c cancelAfterScope) RunInTransaction(ctx context.Context, work func(ctx context.Context, scope ledger.Scope) error) error {
	defer c.cancel()
	return c.Store.RunInTransaction(ctx, work)
}

func TestFailedRecordSurvivesCanceledCaller(t *testing.T) {
	st := newTestStore(t)
	ledgertest.OpenAccount(t, st, "A", "10")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := ledger.NewService(cancelAfterScope{Store: st, cancel: cancel}, ledger.WithFailedWriteRetry(3, 0))

	_, err := svc.Submit(ctx, ledger.Debit("A", ledgertest.Dec(t, "50")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrFailureNotRecorded)
	failed, ok := ledger.FailedTxn(err)
	require.True(t, ok, "got %v", err)

	stored, err := st.Txns().FindByID(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
	assert.Equal(t, ledger.ReasonInsufficientBalance, stored.ErrorReason)
	ledgertest.RequireBalance(t, st, "A", "10")
}
