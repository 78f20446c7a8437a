package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
	}{
		{StatusPending, true, false},
		{StatusSuccess, true, true},
		{StatusFailed, true, true},
		{"UNKNOWN", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestTransferIsBalanced(t *testing.T) {
	txn := Transfer("A", "B", decimal.RequireFromString("12.5"))

	assert.Equal(t, StatusPending, txn.Status)
	if assert.Len(t, txn.Entries, 2) {
		assert.Equal(t, "A", txn.Entries[0].AccountNum)
		assert.Equal(t, "-12.5", txn.Entries[0].Amount.String())
		assert.Equal(t, "B", txn.Entries[1].AccountNum)
	}
	assert.True(t, txn.Net().IsZero())
}

func TestDebitAndCreditSigns(t *testing.T) {
	assert.True(t, Debit("A", decimal.NewFromInt(3)).Net().Equal(decimal.NewFromInt(-3)))
	assert.True(t, Credit("A", decimal.NewFromInt(3)).Net().Equal(decimal.NewFromInt(3)))
}

func TestCloneDoesNotShareEntries(t *testing.T) {
	txn := Credit("A", decimal.NewFromInt(1))
	c := txn.Clone()
	c.Entries[0].AccountNum = "B"
	c.AddEntry("C", decimal.NewFromInt(2))

	assert.Equal(t, "A", txn.Entries[0].AccountNum)
	assert.Len(t, txn.Entries, 1)
	assert.Nil(t, (*Txn)(nil).Clone())
}

func TestTxnFilter(t *testing.T) {
	failed := StatusFailed
	txn := &Txn{Status: StatusFailed}

	assert.True(t, TxnFilter{}.Matches(txn))
	assert.True(t, TxnFilter{Status: &failed}.Matches(txn))
	assert.False(t, TxnFilter{Status: &failed}.Matches(&Txn{Status: StatusPending}))
}

func TestKindOf(t *testing.T) {
	nf := accountNotFound("ghost")
	wrapped := fmt.Errorf("outer: %w", nf)

	assert.Equal(t, KindAccountNotFound, KindOf(wrapped))
	assert.Equal(t, KindUnclassified, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnclassified, KindOf(nil))
	assert.ErrorIs(t, wrapped, ErrNotFound)

	txn := &Txn{ID: "7", Status: StatusFailed, ErrorReason: ReasonAccountNotFound}
	tf := transactionFailed(txn, nf)
	assert.Equal(t, "transaction 7 failed due to ACCOUNT_NOT_FOUND", tf.Error())
	got, ok := FailedTxn(tf)
	assert.True(t, ok)
	assert.Same(t, txn, got)

	_, ok = FailedTxn(nf)
	assert.False(t, ok)
	assert.Equal(t, "InsufficientBalance", KindInsufficientBalance.String())
}
