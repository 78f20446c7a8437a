package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestConnection(t *testing.T) *Connection {
	t.Helper()

	conn, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestLedgerStoreContract(t *testing.T) {
	ledgertest.RunStoreSuite(t, func(t *testing.T) ledger.Store {
		return NewLedgerStore(openTestConnection(t))
	})
}

func TestCheckConstraintRejectsNegativeBalance(t *testing.T) {
	store := NewLedgerStore(openTestConnection(t))

	_, err := store.Accounts().Create(context.Background(), &ledger.Account{
		AccountNum: "ACC-1",
		Balance:    ledgertest.Dec(t, "-0.01"),
	})
	assert.ErrorIs(t, err, ledger.ErrConstraintViolation)

	_, err = store.Accounts().FindByAccountNum(context.Background(), "ACC-1")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestEntriesRoundTripInPosition(t *testing.T) {
	store := NewLedgerStore(openTestConnection(t))
	ctx := context.Background()

	txn := ledger.NewTxn()
	for _, amount := range []string{"3", "-1.005", "2", "0.000001"} {
		txn.AddEntry("ACC-"+amount, ledgertest.Dec(t, amount))
	}

	saved, err := store.Txns().Insert(ctx, txn)
	require.NoError(t, err)

	found, err := store.Txns().FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, found.Entries, 4)
	assert.Equal(t, "-1.005", found.Entries[1].Amount.String())
	assert.Equal(t, "0.000001", found.Entries[3].Amount.String())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, ledger.ErrConstraintViolation},
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ledger.ErrDuplicateKey},
		{"primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, ledger.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	other := errors.New("disk I/O error")
	assert.Same(t, other, mapError(other))
}
