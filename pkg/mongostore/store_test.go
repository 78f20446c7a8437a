package mongostore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "100.50", "-30.25", "0.000000001", "123456789012345678.99"} {
		t.Run(s, func(t *testing.T) {
			d := decimal.RequireFromString(s)

			v, err := toDecimal128(d)
			require.NoError(t, err)
			back, err := fromDecimal128(v)
			require.NoError(t, err)
			assert.True(t, d.Equal(back), "want %s, got %s", d, back)
		})
	}
}

func TestTxnDocConversion(t *testing.T) {
	txn := ledger.Transfer("A", "B", decimal.RequireFromString("12.34"))
	txn.TransactionDate = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	doc, err := newTxnDoc(txn)
	require.NoError(t, err)
	doc.ID = primitive.NewObjectID()
	assert.Equal(t, "PENDING", doc.Status)
	require.Len(t, doc.Entries, 2)

	back, err := doc.toTxn()
	require.NoError(t, err)
	assert.Equal(t, doc.ID.Hex(), back.ID)
	assert.Equal(t, txn.TransactionDate, back.TransactionDate)
	assert.Equal(t, "A", back.Entries[0].AccountNum)
	assert.Equal(t, "-12.34", back.Entries[0].Amount.String())
	assert.True(t, back.Net().IsZero())
}

func TestClassify(t *testing.T) {
	validation := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: codeDocumentValidationFailure, Message: "Document failed validation"}},
	}
	duplicate := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no documents", mongo.ErrNoDocuments, ledger.ErrNotFound},
		{"validation", validation, ledger.ErrConstraintViolation},
		{"wrapped validation", fmt.Errorf("update: %w", validation), ledger.ErrConstraintViolation},
		{"duplicate key", duplicate, ledger.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}

	other := errors.New("server selection timeout")
	assert.Same(t, other, classify(other))
	assert.NoError(t, classify(nil))
}

func TestHasCode(t *testing.T) {
	cmdErr := mongo.CommandError{Code: codeNamespaceExists, Name: "NamespaceExists"}
	assert.True(t, hasCode(cmdErr, codeNamespaceExists))
	assert.False(t, hasCode(cmdErr, codeDocumentValidationFailure))
	assert.False(t, hasCode(errors.New("plain"), codeNamespaceExists))
}

func TestInvalidIDNeedsNoServer(t *testing.T) {
	s := &Store{}

	_, err := s.Txns().FindByID(context.Background(), "not-hex")
	assert.ErrorIs(t, err, ledger.ErrInvalidID)

	_, err = s.Txns().UpdateStatus(context.Background(), "", ledger.StatusSuccess, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidID)
}

func TestConnectValidatesArguments(t *testing.T) {
	_, err := Connect(context.Background(), "", "db")
	assert.Error(t, err)
	_, err = Connect(context.Background(), "mongodb://localhost:27017", "")
	assert.Error(t, err)
}
