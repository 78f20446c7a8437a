package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type entryDoc struct {
	AccountNum string               `bson:"accountNum"`
	Amount     primitive.Decimal128 `bson:"amount"`
}

type txnDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Entries         []entryDoc         `bson:"entries"`
	Status          string             `bson:"status"`
	TransactionDate time.Time          `bson:"transactionDate"`
	ErrorReason     string             `bson:"errorReason,omitempty"`
}

func newTxnDoc(txn *ledger.Txn) (*txnDoc, error) {
	doc := &txnDoc{
		Entries:         make([]entryDoc, 0, len(txn.Entries)),
		Status:          string(txn.Status),
		TransactionDate: txn.TransactionDate.UTC(),
		ErrorReason:     string(txn.ErrorReason),
	}
	for _, e := range txn.Entries {
		amount, err := toDecimal128(e.Amount)
		if err != nil {
			return nil, err
		}
		doc.Entries = append(doc.Entries, entryDoc{AccountNum: e.AccountNum, Amount: amount})
	}
	return doc, nil
}

func (d *txnDoc) toTxn() (*ledger.Txn, error) {
	txn := &ledger.Txn{
		ID:              d.ID.Hex(),
		Entries:         make([]ledger.TxnEntry, 0, len(d.Entries)),
		Status:          ledger.Status(d.Status),
		TransactionDate: d.TransactionDate.UTC(),
		ErrorReason:     ledger.ErrorReason(d.ErrorReason),
	}
	for _, e := range d.Entries {
		amount, err := fromDecimal128(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt entry amount in %s: %w", txn.ID, err)
		}
		txn.Entries = append(txn.Entries, ledger.TxnEntry{AccountNum: e.AccountNum, Amount: amount})
	}
	return txn, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ledger.ErrInvalidID, id)
	}
	return oid, nil
}

type txns struct {
	view
}

func (t txns) Insert(ctx context.Context, txn *ledger.Txn) (*ledger.Txn, error) {
	doc, err := newTxnDoc(txn)
	if err != nil {
		return nil, err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := t.txnsColl().InsertOne(t.ctx(ctx), doc); err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", classify(err))
	}

	stored := txn.Clone()
	stored.ID = doc.ID.Hex()
	return stored, nil
}

func (t txns) FindByID(ctx context.Context, id string) (*ledger.Txn, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc txnDoc
	if err := t.txnsColl().FindOne(t.ctx(ctx), bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, classify(err)
	}
	return doc.toTxn()
}

// UpdateStatus matches on status PENDING so a terminal record is never
// rewritten, even by concurrent writers.
func (t txns) UpdateStatus(ctx context.Context, id string, status ledger.Status, reason ledger.ErrorReason) (*ledger.Txn, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"status": string(status)}
	if reason != "" {
		set["errorReason"] = string(reason)
	}

	var doc txnDoc
	err = t.txnsColl().FindOneAndUpdate(t.ctx(ctx),
		bson.M{"_id": oid, "status": string(ledger.StatusPending)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := t.txnsColl().CountDocuments(t.ctx(ctx), bson.M{"_id": oid})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check transaction %s: %w", id, cerr)
		}
		if n == 0 {
			return nil, ledger.ErrNotFound
		}
		return nil, ledger.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", id, classify(err))
	}
	return doc.toTxn()
}

func (t txns) List(ctx context.Context, filter ledger.TxnFilter) ([]*ledger.Txn, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	cur, err := t.txnsColl().Find(t.ctx(ctx), query,
		options.Find().SetSort(bson.D{{Key: "transactionDate", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var docs []txnDoc
	if err := cur.All(t.ctx(ctx), &docs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	out := make([]*ledger.Txn, 0, len(docs))
	for i := range docs {
		txn, err := docs[i].toTxn()
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}
