package mongostore

import (
	"context"
	"fmt"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type accountDoc struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	AccountNum string               `bson:"accountNum"`
	Balance    primitive.Decimal128 `bson:"balance"`
}

func (d accountDoc) toAccount() (*ledger.Account, error) {
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for %s: %w", d.AccountNum, err)
	}
	return &ledger.Account{AccountNum: d.AccountNum, Balance: balance}, nil
}

type accounts struct {
	view
}

func (a accounts) Create(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	balance, err := toDecimal128(account.Balance)
	if err != nil {
		return nil, err
	}

	_, err = a.accountsColl().InsertOne(a.ctx(ctx), accountDoc{
		AccountNum: account.AccountNum,
		Balance:    balance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", account.AccountNum, classify(err))
	}
	return &ledger.Account{AccountNum: account.AccountNum, Balance: account.Balance}, nil
}

func (a accounts) FindByAccountNum(ctx context.Context, accountNum string) (*ledger.Account, error) {
	var doc accountDoc
	err := a.accountsColl().FindOne(a.ctx(ctx), bson.M{"accountNum": accountNum}).Decode(&doc)
	if err != nil {
		return nil, classify(err)
	}
	return doc.toAccount()
}

// IncrementBalance issues a single $inc. The collection validator rejects the
// write when the result would be negative.
func (a accounts) IncrementBalance(ctx context.Context, accountNum string, delta decimal.Decimal) (int64, error) {
	inc, err := toDecimal128(delta)
	if err != nil {
		return 0, err
	}

	res, err := a.accountsColl().UpdateOne(a.ctx(ctx),
		bson.M{"accountNum": accountNum},
		bson.M{"$inc": bson.M{"balance": inc}},
	)
	if err != nil {
		return 0, classify(err)
	}
	return res.MatchedCount, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s does not fit decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}
