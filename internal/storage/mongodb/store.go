// Package mongodb implements catalog persistence on MongoDB.
package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNoDocument is returned by FindOne when nothing matches.
	ErrNoDocument = errors.New("no document")
	// ErrDuplicateKey is returned by InsertOne and UpdateOne on a unique index
	// violation.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Connect opens a client, verifies it with a ping and returns the named
// database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}
	return client.Database(database), nil
}

// Page bounds a Find. A zero Limit means no limit.
type Page struct {
	Skip  int64
	Limit int64
}

// Store is a thin document store over one database.
type Store struct {
	db *mongo.Database
}

// NewStore returns a Store on db.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Find decodes every document matching filter within page into out, which
// must be a pointer to a slice.
func (s *Store) Find(ctx context.Context, collection string, filter any, page Page, out any) error {
	opts := options.Find()
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return errors.Wrapf(err, "find in %s", collection)
	}
	if err := cur.All(ctx, out); err != nil {
		return errors.Wrapf(err, "decode %s", collection)
	}
	return nil
}

// FindOne decodes the first document matching filter into out.
func (s *Store) FindOne(ctx context.Context, collection string, filter, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNoDocument
	case err != nil:
		return errors.Wrapf(err, "find one in %s", collection)
	}
	return nil
}

// InsertOne stores doc.
func (s *Store) InsertOne(ctx context.Context, collection string, doc any) error {
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return errors.Wrapf(err, "insert into %s", collection)
	}
	return nil
}

// UpdateOne applies update to the first document matching filter and reports
// whether one matched.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter, update any) (bool, error) {
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, ErrDuplicateKey
		}
		return false, errors.Wrapf(err, "update %s", collection)
	}
	return res.MatchedCount > 0, nil
}

// DeleteOne removes the first document matching filter and reports whether
// one was deleted.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter any) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return false, errors.Wrapf(err, "delete from %s", collection)
	}
	return res.DeletedCount > 0, nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter any) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", collection)
	}
	return n, nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// EnsureIndexes creates indexes on collection. Existing identical indexes are
// left alone.
func (s *Store) EnsureIndexes(ctx context.Context, collection string, models []mongo.IndexModel) error {
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return errors.Wrapf(err, "create indexes on %s", collection)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
