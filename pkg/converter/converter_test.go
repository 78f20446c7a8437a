package converter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapperFromConfig(AccountMappingConfig{
		Currency: "JPY",
		Accounts: []AccountMapping{{AccountNum: "A-1", Beancount: "Assets:Bank:Checking"}},
	})
	require.NoError(t, err)
	return m
}

func successTxn(entries ...ledger.TxnEntry) *ledger.Txn {
	txn := ledger.NewTxn(entries...)
	txn.ID = "42"
	txn.Status = ledger.StatusSuccess
	txn.TransactionDate = time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)
	return txn
}

func TestNewMapper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency: EUR
external: Equity:World
accounts:
  - account_num: "1001"
    beancount: Assets:Savings
`), 0644))

	m, err := NewMapper(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", m.Currency())
	assert.Equal(t, "Equity:World", m.External())
	assert.Equal(t, "Assets:Savings", m.BeancountAccount("1001"))
	assert.Equal(t, "Assets:Ledger:1002", m.BeancountAccount("1002"))

	_, err = NewMapper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMapperRejectsBadEntries(t *testing.T) {
	_, err := NewMapperFromConfig(AccountMappingConfig{Accounts: []AccountMapping{{AccountNum: "x"}}})
	assert.Error(t, err)

	_, err = NewMapperFromConfig(AccountMappingConfig{Accounts: []AccountMapping{
		{AccountNum: "x", Beancount: "Assets:X"},
		{AccountNum: "x", Beancount: "Assets:Y"},
	}})
	assert.Error(t, err)
}

func TestSanitizeComponent(t *testing.T) {
	tests := map[string]string{
		"acct-1":   "Acct-1",
		"12 34":    "12-34",
		"a.b/c":    "A-b-c",
		"_hidden":  "X-hidden",
		"":         "X",
		"Checking": "Checking",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeComponent(in), in)
	}
}

func TestConvertTransfer(t *testing.T) {
	c := NewConverter(testMapper(t))
	out, ok, err := c.ConvertTxn(successTxn(
		ledger.TxnEntry{AccountNum: "A-1", Amount: decimal.RequireFromString("-25")},
		ledger.TxnEntry{AccountNum: "b", Amount: decimal.RequireFromString("25")},
	))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "2024-03-31", out.Date)
	assert.Equal(t, "Transfer A-1 to b", out.Narration)
	assert.Equal(t, "42", out.Metadata["txn_id"])
	require.Len(t, out.Postings, 2)
	assert.Equal(t, "Assets:Bank:Checking", out.Postings[0].Account)
	assert.Equal(t, "Assets:Ledger:B", out.Postings[1].Account)
	assert.Equal(t, "JPY", out.Postings[1].Currency)
	assert.True(t, out.Balanced())
}

func TestConvertSingleLegIsBalanced(t *testing.T) {
	c := NewConverter(testMapper(t))

	out, ok, err := c.ConvertTxn(successTxn(ledger.TxnEntry{AccountNum: "A-1", Amount: decimal.RequireFromString("-7.5")}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Debit A-1", out.Narration)
	require.Len(t, out.Postings, 2)
	assert.Equal(t, "Equity:External", out.Postings[1].Account)
	assert.Equal(t, "7.5", out.Postings[1].Amount.String())
	assert.True(t, out.Balanced())

	out, _, err = c.ConvertTxn(successTxn(ledger.TxnEntry{AccountNum: "A-1", Amount: decimal.RequireFromString("3")}))
	require.NoError(t, err)
	assert.Equal(t, "Credit A-1", out.Narration)
}

func TestConvertSkipsAndRejects(t *testing.T) {
	c := NewConverter(testMapper(t))

	_, ok, err := c.ConvertTxn(successTxn())
	require.NoError(t, err)
	assert.False(t, ok)

	failed := successTxn(ledger.TxnEntry{AccountNum: "A-1", Amount: decimal.RequireFromString("1")})
	failed.Status = ledger.StatusFailed
	_, _, err = c.ConvertTxn(failed)
	assert.Error(t, err)
}
