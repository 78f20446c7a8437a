package beancount

import (
	"strings"
	"testing"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/pathutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	txn := Transaction{
		Date:      "2024-05-01",
		Narration: "Transfer A to B",
		Tags:      []string{"ledger"},
		Metadata:  map[string]string{"txn_id": "7", "entries": "2"},
		Postings: []Posting{
			{Account: "Assets:Ledger:A", Amount: decimal.RequireFromString("-10.50"), Currency: "USD"},
			{Account: "Assets:Ledger:B", Amount: decimal.RequireFromString("10.5"), Currency: "USD", Comment: "leg 2"},
		},
	}

	out := txn.Format()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `2024-05-01 * "Transfer A to B" #ledger`, lines[0])
	assert.Equal(t, `  entries: "2"`, lines[1])
	assert.Equal(t, `  txn_id: "7"`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "  Assets:Ledger:A "))
	assert.True(t, strings.HasSuffix(lines[3], " -10.5 USD"))
	assert.True(t, strings.HasSuffix(lines[4], " 10.5 USD ; leg 2"))
	assert.Equal(t, len(lines[3]), len(lines[4])-len(" ; leg 2"), "amounts end in the same column")
	assert.True(t, txn.Balanced())
}

func TestRepositoryAppend(t *testing.T) {
	root := t.TempDir()
	repo := NewFileSystemRepository(pathutil.New(pathutil.Config{Root: root}))
	repo.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	assert.False(t, repo.MonthFileExists("2024-05"))
	content, err := repo.ReadMonthFile("2024-05")
	require.NoError(t, err)
	assert.Empty(t, content)

	require.NoError(t, repo.AppendTransaction("2024-05", "2024-05-01 * \"one\"", "txn 1"))
	require.NoError(t, repo.AppendTransaction("2024-05", "2024-05-02 * \"two\"\n"))
	require.NoError(t, repo.AppendTransaction("2024-01", "2024-01-02 * \"jan\"\n"))

	content, err = repo.ReadMonthFile("2024-05")
	require.NoError(t, err)
	assert.Equal(t,
		"; Ledger export for 2024-05\n; Generated at 2024-06-01T00:00:00Z\n\n"+
			"; txn 1\n2024-05-01 * \"one\"\n\n"+
			"2024-05-02 * \"two\"\n\n",
		content)

	months, err := repo.MonthFilesInYear("2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-05"}, months)

	months, err = repo.MonthFilesInYear("1999")
	require.NoError(t, err)
	assert.Empty(t, months)

	assert.Error(t, repo.AppendTransaction("May", "x"))
}
