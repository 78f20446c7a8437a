package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/pigeonworks-llc/go-portalloc/pkg/ports"
	"github.com/pigeonworks-llc/txn-ledger/internal/api"
	"github.com/pigeonworks-llc/txn-ledger/pkg/client"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer serves the API on a real port so the client exercises its
// full HTTP path.
func setupTestServer(t *testing.T) (*client.Client, *ledgertest.MemStore) {
	t.Helper()

	allocator := ports.NewAllocator(nil)
	port, err := allocator.AllocateRange(1)
	require.NoError(t, err, "failed to allocate port")

	store := ledgertest.NewMemStore()
	svc := ledger.NewService(store, ledger.WithFailedWriteRetry(3, 0))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: api.NewRouter(api.Deps{Service: svc}),
	}
	go func() {
		_ = server.ListenAndServe()
	}()
	t.Cleanup(func() { _ = server.Close() })

	c := client.NewClient(client.ClientConfig{
		APIURL:  fmt.Sprintf("http://localhost:%d", port),
		Timeout: 5 * time.Second,
	})

	ctx := context.Background()
	for i := 0; ; i++ {
		if err := c.Health(ctx); err == nil {
			break
		} else if i == 9 {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	return c, store
}

func TestClientAccounts(t *testing.T) {
	t.Parallel()
	c, _ := setupTestServer(t)
	ctx := context.Background()

	created, err := c.CreateAccount(ctx, "A-1", ledgertest.Dec(t, "12.34"))
	require.NoError(t, err)
	assert.Equal(t, "A-1", created.AccountNum)

	got, err := c.GetAccount(ctx, "A-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(ledgertest.Dec(t, "12.34")))

	_, err = c.CreateAccount(ctx, "A-1", ledgertest.Dec(t, "1"))
	require.Error(t, err)
	assert.True(t, client.IsReason(err, ledger.ReasonDuplicateAccount))

	_, err = c.GetAccount(ctx, "missing")
	require.Error(t, err)
	assert.True(t, client.IsReason(err, ledger.ReasonAccountNotFound))

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClientTransactions(t *testing.T) {
	t.Parallel()
	c, store := setupTestServer(t)
	ctx := context.Background()

	ledgertest.OpenAccount(t, store, "A", "100")
	ledgertest.OpenAccount(t, store, "B", "0")

	txn, err := c.Debit(ctx, "A", ledgertest.Dec(t, "10"))
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, txn.Status)

	_, err = c.Credit(ctx, "B", ledgertest.Dec(t, "5"))
	require.NoError(t, err)

	_, err = c.Transfer(ctx, "A", "B", ledgertest.Dec(t, "40"))
	require.NoError(t, err)

	_, err = c.SubmitEntries(ctx, []ledger.TxnEntry{
		{AccountNum: "B", Amount: ledgertest.Dec(t, "-45")},
		{AccountNum: "A", Amount: ledgertest.Dec(t, "45")},
	})
	require.NoError(t, err)

	ledgertest.RequireBalance(t, store, "A", "95")
	ledgertest.RequireBalance(t, store, "B", "0")

	fetched, err := c.GetTxn(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, fetched.ID)

	all, err := c.ListTxns(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestClientFailedTransaction(t *testing.T) {
	t.Parallel()
	c, store := setupTestServer(t)
	ctx := context.Background()

	ledgertest.OpenAccount(t, store, "A", "1")

	txn, err := c.Debit(ctx, "A", ledgertest.Dec(t, "2"))
	require.Error(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, ledger.StatusFailed, txn.Status)
	assert.True(t, client.IsReason(err, ledger.ReasonInsufficientBalance))
	assert.Equal(t, fmt.Sprintf("transaction %s failed due to INSUFFICIENT_BALANCE", txn.ID), err.Error())

	failed := ledger.StatusFailed
	list, err := c.ListTxns(ctx, &failed)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, txn.ID, list[0].ID)

	_, err = c.GetTxn(ctx, "404")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientIdempotencyKeyWithoutGuard(t *testing.T) {
	t.Parallel()
	c, store := setupTestServer(t)
	ctx := context.Background()

	ledgertest.OpenAccount(t, store, "A", "0")

	// Without a guard configured the key is ignored and both requests apply.
	_, err := c.Credit(ctx, "A", ledgertest.Dec(t, "1"), client.WithIdempotencyKey("k"))
	require.NoError(t, err)
	_, err = c.Credit(ctx, "A", ledgertest.Dec(t, "1"), client.WithIdempotencyKey("k"))
	require.NoError(t, err)

	ledgertest.RequireBalance(t, store, "A", "2")
}
