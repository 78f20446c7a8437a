package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pigeonworks-llc/txn-ledger/pkg/config"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, driver := range []string{config.DriverBolt, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			store, err := openStore(ctx, config.StoreConfig{
				Driver:     driver,
				BoltPath:   filepath.Join(dir, "ledger.db"),
				SQLitePath: filepath.Join(dir, "ledger.sqlite"),
			})
			require.NoError(t, err)
			defer store.Close()

			svc := ledger.NewService(store)
			ledgertest.OpenAccount(t, store, "A", "10")
			txn, err := svc.Submit(ctx, ledger.Debit("A", ledgertest.Dec(t, "4")))
			require.NoError(t, err)
			assert.Equal(t, ledger.StatusSuccess, txn.Status)
			ledgertest.RequireBalance(t, store, "A", "6")
		})
	}
}

func TestOpenStoreRejects(t *testing.T) {
	_, err := openStore(context.Background(), config.StoreConfig{Driver: "etcd"})
	assert.Error(t, err)

	_, err = openStore(context.Background(), config.StoreConfig{Driver: config.DriverMongo})
	assert.Error(t, err)
}
