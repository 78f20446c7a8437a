// Package mongostore is the MongoDB ledger backend. A RunInTransaction scope
// is a session transaction with snapshot read concern and majority write
// concern; the accounts collection carries a $jsonSchema validator that
// rejects negative balances.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Collection names.
const (
	CollectionAccounts = "accounts"
	CollectionTxns     = "transactions"
)

// Server error codes.
const (
	codeNamespaceExists           = 48
	codeDocumentValidationFailure = 121
)

const defaultServerSelectionTimeout = 5 * time.Second

// Store implements ledger.Store on a MongoDB database. Transactions require a
// replica set or sharded cluster.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	ownsClient bool
}

// Connect dials uri, checks the connection and prepares database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri cannot be empty")
	}
	if database == "" {
		return nil, errors.New("database name cannot be empty")
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(defaultServerSelectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s, err := New(ctx, client.Database(database))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// New wraps an existing database handle and ensures its schema. The caller
// keeps ownership of the client.
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{client: db.Client(), db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the collections, the balance validator and the
// indexes. It is safe to call on an initialized database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	validator := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"accountNum", "balance"},
			"properties": bson.M{
				"accountNum": bson.M{"bsonType": "string"},
				"balance": bson.M{
					"bsonType":    "decimal",
					"minimum":     0,
					"description": "'balance' cannot be less than 0",
				},
			},
		},
	}

	if err := s.createCollection(ctx, CollectionAccounts, options.CreateCollection().SetValidator(validator)); err != nil {
		return err
	}
	if err := s.createCollection(ctx, CollectionTxns, nil); err != nil {
		return err
	}

	_, err := s.db.Collection(CollectionAccounts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "accountNum", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("accountNum_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create account index: %w", err)
	}

	_, err = s.db.Collection(CollectionTxns).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "transactionDate", Value: 1}},
		Options: options.Index().SetName("status_transactionDate"),
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction index: %w", err)
	}
	return nil
}

func (s *Store) createCollection(ctx context.Context, name string, opts *options.CreateCollectionOptions) error {
	var err error
	if opts != nil {
		err = s.db.CreateCollection(ctx, name, opts)
	} else {
		err = s.db.CreateCollection(ctx, name)
	}
	if err != nil && !hasCode(err, codeNamespaceExists) {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Accounts returns account access outside any transaction.
func (s *Store) Accounts() ledger.AccountStore { return accounts{s.view(nil)} }

// Txns returns record access outside any transaction.
func (s *Store) Txns() ledger.TxnStore { return txns{s.view(nil)} }

// RunInTransaction implements ledger.Store. The driver retries work on
// transient transaction errors such as write conflicts.
func (s *Store) RunInTransaction(ctx context.Context, work func(ctx context.Context, scope ledger.Scope) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, work(sc, s.view(sc))
	}, txnOpts)
	return err
}

// Close disconnects the client when the store created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// view routes operations through a session when one is bound, whatever
// context the caller passes in.
type view struct {
	db *mongo.Database
	sc mongo.SessionContext
}

func (s *Store) view(sc mongo.SessionContext) view {
	return view{db: s.db, sc: sc}
}

func (v view) Accounts() ledger.AccountStore { return accounts{v} }
func (v view) Txns() ledger.TxnStore         { return txns{v} }

func (v view) ctx(ctx context.Context) context.Context {
	if v.sc != nil {
		return v.sc
	}
	return ctx
}

func (v view) accountsColl() *mongo.Collection { return v.db.Collection(CollectionAccounts) }
func (v view) txnsColl() *mongo.Collection     { return v.db.Collection(CollectionTxns) }

// classify maps driver errors onto ledger sentinels, keeping the original in
// the message.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ledger.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ledger.ErrDuplicateKey, err)
	case hasCode(err, codeDocumentValidationFailure):
		return fmt.Errorf("%w: %v", ledger.ErrConstraintViolation, err)
	}
	return err
}

func hasCode(err error, code int) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}
