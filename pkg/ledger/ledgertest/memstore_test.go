package ledgertest

import (
	"testing"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
)

func TestMemStore(t *testing.T) {
	RunStoreSuite(t, func(t *testing.T) ledger.Store {
		return NewMemStore()
	})
}
