package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dec parses s or fails the test.
func Dec(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// OpenAccount creates an account with the given balance through the store.
func OpenAccount(t testing.TB, store ledger.Store, accountNum, balance string) {
	t.Helper()
	_, err := store.Accounts().Create(context.Background(), &ledger.Account{
		AccountNum: accountNum,
		Balance:    Dec(t, balance),
	})
	require.NoError(t, err)
}

// RequireBalance asserts the stored balance of accountNum.
func RequireBalance(t testing.TB, store ledger.Store, accountNum, want string) {
	t.Helper()
	account, err := store.Accounts().FindByAccountNum(context.Background(), accountNum)
	require.NoError(t, err)
	require.Truef(t, Dec(t, want).Equal(account.Balance),
		"balance of %s: want %s, got %s", accountNum, want, account.Balance)
}

// RunStoreSuite checks that a backend honors the ledger.Store contract and
// that the engine keeps its guarantees on top of it. newStore must return an
// empty store; it is called once per subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("CreateAndFindAccount", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Accounts().Create(ctx, &ledger.Account{AccountNum: "ACC-1", Balance: Dec(t, "100.50")})
		require.NoError(t, err)
		assert.Equal(t, "ACC-1", created.AccountNum)

		RequireBalance(t, store, "ACC-1", "100.5")

		_, err = store.Accounts().FindByAccountNum(ctx, "ghost")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("DuplicateAccount", func(t *testing.T) {
		store := newStore(t)
		OpenAccount(t, store, "ACC-1", "10")

		_, err := store.Accounts().Create(context.Background(), &ledger.Account{AccountNum: "ACC-1", Balance: Dec(t, "5")})
		assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
		RequireBalance(t, store, "ACC-1", "10")
	})

	t.Run("IncrementBalance", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		OpenAccount(t, store, "ACC-1", "100")

		n, err := store.Accounts().IncrementBalance(ctx, "ACC-1", Dec(t, "-30.25"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		RequireBalance(t, store, "ACC-1", "69.75")

		n, err = store.Accounts().IncrementBalance(ctx, "ghost", Dec(t, "5"))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		_, err = store.Accounts().IncrementBalance(ctx, "ACC-1", Dec(t, "-69.76"))
		assert.ErrorIs(t, err, ledger.ErrConstraintViolation)
		RequireBalance(t, store, "ACC-1", "69.75")

		n, err = store.Accounts().IncrementBalance(ctx, "ACC-1", Dec(t, "-69.75"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		RequireBalance(t, store, "ACC-1", "0")
	})

	t.Run("InsertAndFindTxn", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		txn := ledger.NewTxn(
			ledger.TxnEntry{AccountNum: "B", Amount: Dec(t, "-1")},
			ledger.TxnEntry{AccountNum: "A", Amount: Dec(t, "2")},
			ledger.TxnEntry{AccountNum: "B", Amount: Dec(t, "3")},
		)
		saved, err := store.Txns().Insert(ctx, txn)
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		assert.Empty(t, txn.ID, "Insert must not mutate its argument")

		found, err := store.Txns().FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, found.Status)
		require.Len(t, found.Entries, 3)
		for i, want := range txn.Entries {
			assert.Equal(t, want.AccountNum, found.Entries[i].AccountNum)
			assert.True(t, want.Amount.Equal(found.Entries[i].Amount), "entry %d amount", i)
		}
		assert.WithinDuration(t, txn.TransactionDate, found.TransactionDate, time.Millisecond)
	})

	t.Run("FindUnknownTxn", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Txns().FindByID(context.Background(), "does-not-exist")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrInvalidID), "got %v", err)
	})

	t.Run("UpdateStatusIsTerminal", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		saved, err := store.Txns().Insert(ctx, ledger.NewTxn())
		require.NoError(t, err)

		updated, err := store.Txns().UpdateStatus(ctx, saved.ID, ledger.StatusFailed, ledger.ReasonInsufficientBalance)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusFailed, updated.Status)
		assert.Equal(t, ledger.ReasonInsufficientBalance, updated.ErrorReason)

		_, err = store.Txns().UpdateStatus(ctx, saved.ID, ledger.StatusSuccess, "")
		assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

		found, err := store.Txns().FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusFailed, found.Status)
	})

	t.Run("ListByStatus", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var ids []string
		for i := 0; i < 3; i++ {
			saved, err := store.Txns().Insert(ctx, ledger.NewTxn())
			require.NoError(t, err)
			ids = append(ids, saved.ID)
		}
		_, err := store.Txns().UpdateStatus(ctx, ids[1], ledger.StatusSuccess, "")
		require.NoError(t, err)

		all, err := store.Txns().List(ctx, ledger.TxnFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		pending := ledger.StatusPending
		onlyPending, err := store.Txns().List(ctx, ledger.TxnFilter{Status: &pending})
		require.NoError(t, err)
		require.Len(t, onlyPending, 2)
		for _, txn := range onlyPending {
			assert.NotEqual(t, ids[1], txn.ID)
		}
	})

	t.Run("ScopeRollsBack", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		OpenAccount(t, store, "ACC-1", "100")
		saved, err := store.Txns().Insert(ctx, ledger.NewTxn())
		require.NoError(t, err)

		boom := errors.New("boom")
		err = store.RunInTransaction(ctx, func(ctx context.Context, scope ledger.Scope) error {
			if _, err := scope.Accounts().IncrementBalance(ctx, "ACC-1", Dec(t, "-40")); err != nil {
				return err
			}
			if _, err := scope.Txns().UpdateStatus(ctx, saved.ID, ledger.StatusSuccess, ""); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		RequireBalance(t, store, "ACC-1", "100")
		found, err := store.Txns().FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, found.Status)
	})

	t.Run("ScopeCommits", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		OpenAccount(t, store, "ACC-1", "100")

		err := store.RunInTransaction(ctx, func(ctx context.Context, scope ledger.Scope) error {
			_, err := scope.Accounts().IncrementBalance(ctx, "ACC-1", Dec(t, "-40"))
			return err
		})
		require.NoError(t, err)
		RequireBalance(t, store, "ACC-1", "60")
	})

	t.Run("EngineTransferSucceeds", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store)
		OpenAccount(t, store, "A", "100")
		OpenAccount(t, store, "B", "50")

		txn, err := svc.Submit(context.Background(), ledger.Transfer("A", "B", Dec(t, "30")))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSuccess, txn.Status)
		assert.Empty(t, txn.ErrorReason)

		RequireBalance(t, store, "A", "70")
		RequireBalance(t, store, "B", "80")
	})

	t.Run("EngineInsufficientBalanceIsAtomic", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store)
		ctx := context.Background()
		OpenAccount(t, store, "A", "100")
		OpenAccount(t, store, "B", "10")

		// The credit to A is applied before B's debit fails.
		txn := ledger.NewTxn(
			ledger.TxnEntry{AccountNum: "A", Amount: Dec(t, "20")},
			ledger.TxnEntry{AccountNum: "B", Amount: Dec(t, "-20")},
		)
		_, err := svc.Submit(ctx, txn)
		require.Error(t, err)
		assert.Equal(t, ledger.KindTransactionFailed, ledger.KindOf(err))

		failed, ok := ledger.FailedTxn(err)
		require.True(t, ok)
		assert.Equal(t, ledger.StatusFailed, failed.Status)
		assert.Equal(t, ledger.ReasonInsufficientBalance, failed.ErrorReason)

		RequireBalance(t, store, "A", "100")
		RequireBalance(t, store, "B", "10")

		stored, err := svc.GetTxn(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusFailed, stored.Status)
		assert.Equal(t, ledger.ReasonInsufficientBalance, stored.ErrorReason)
	})

	t.Run("EngineAccountNotFound", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store)
		OpenAccount(t, store, "A", "100")

		_, err := svc.Submit(context.Background(), ledger.Transfer("A", "ghost", Dec(t, "10")))
		failed, ok := ledger.FailedTxn(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, ledger.ReasonAccountNotFound, failed.ErrorReason)
		RequireBalance(t, store, "A", "100")
	})

	t.Run("EngineZeroEntryTxnSucceeds", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store)

		txn, err := svc.Submit(context.Background(), ledger.NewTxn())
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSuccess, txn.Status)
	})

	t.Run("EngineZeroAmountGhostIsAccountNotFound", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store)
		OpenAccount(t, store, "A", "10")

		_, err := svc.Submit(context.Background(), ledger.NewTxn(
			ledger.TxnEntry{AccountNum: "A", Amount: decimal.Zero},
			ledger.TxnEntry{AccountNum: "ghost", Amount: decimal.Zero},
		))
		failed, ok := ledger.FailedTxn(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, ledger.StatusFailed, failed.Status)
		assert.Equal(t, ledger.ReasonAccountNotFound, failed.ErrorReason)
		RequireBalance(t, store, "A", "10")
	})

	t.Run("EngineConcurrentDebitsNeverOverdraw", func(t *testing.T) {
		store := newStore(t)
		svc := ledger.NewService(store, ledger.WithFailedWriteRetry(5, 0))
		OpenAccount(t, store, "A", "100")

		const workers = 8
		amount := Dec(t, "30")
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Submit(context.Background(), ledger.Debit("A", amount))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		// Backends with optimistic concurrency may also abort a scope with an
		// unclassified error; balances are untouched in that case.
		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			}
		}
		assert.LessOrEqual(t, succeeded, 3)

		account, err := store.Accounts().FindByAccountNum(context.Background(), "A")
		require.NoError(t, err)
		assert.False(t, account.Balance.IsNegative())
		assert.True(t, Dec(t, "100").Sub(amount.Mul(decimal.NewFromInt(int64(succeeded)))).Equal(account.Balance))
	})
}
