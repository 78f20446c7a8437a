package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportHistory(t *testing.T) {
	history := NewExportHistory(openTestConnection(t))

	before, err := history.GetExportRecord("txn-1")
	require.NoError(t, err)
	assert.Nil(t, before)

	require.NoError(t, history.RecordExport(ExportRecord{
		TxnID:           "txn-1",
		TransactionDate: "2025-01-15",
		Amount:          "30",
		BeancountFile:   "2025/2025-01.beancount",
	}))
	require.NoError(t, history.RecordExport(ExportRecord{
		TxnID:           "txn-2",
		TransactionDate: "2025-02-01",
		Amount:          "5.5",
		BeancountFile:   "2025/2025-02.beancount",
	}))

	first, err := history.GetExportRecord("txn-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "30", first.Amount)

	// Re-recording updates in place.
	require.NoError(t, history.RecordExport(ExportRecord{
		TxnID:           "txn-1",
		TransactionDate: "2025-01-15",
		Amount:          "31",
		BeancountFile:   "2025/2025-01.beancount",
	}))
	record, err := history.GetExportRecord("txn-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "31", record.Amount)

	missing, err := history.GetExportRecord("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := history.GetExportedIDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"txn-1": true, "txn-2": true}, ids)

	stats, err := history.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalExported)
	assert.Equal(t, "2025-01-15", stats.FirstDate.String)
	assert.Equal(t, "2025-02-01", stats.LastDate.String)
	assert.True(t, stats.LastExport.Valid)

	deleted, err := history.DeleteExportRecord("txn-2")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = history.DeleteExportRecord("txn-2")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestExportMetadata(t *testing.T) {
	history := NewExportHistory(openTestConnection(t))

	value, err := history.GetMetadata(MetaLastExportTo)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, history.SetMetadata(MetaLastExportTo, "2025-01-31"))
	require.NoError(t, history.SetMetadata(MetaLastExportTo, "2025-02-28"))

	value, err = history.GetMetadata(MetaLastExportTo)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", value)
}
