// Package mongostore implements store.Store on MongoDB.
//
// The client is created once by Open and shared by every request; the driver
// owns the connection pool. Ready pings the primary lazily and caches a
// successful result for ReadyTTL so a busy gateway does not ping per request.
//
// Documents leave this package normalized: ObjectIDs become hex strings,
// DateTimes become time.Time, and nested documents and arrays become
// map[string]any and []any.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/topology"

	store "github.com/hanpama/stitchgate/internal/store"
)

// Dependency is the name reported in DependencyUnavailableError.
const Dependency = "mongodb"

const defaultDatabase = "stitchgate"

// Store is a store.Store backed by one mongo.Client.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   *Options

	mu        sync.Mutex
	readyAt   time.Time
	lastError error
}

var _ store.Store = (*Store)(nil)

// Open validates uri and creates the client. It does not wait for the server;
// the first Ready call does.
func Open(uri string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("mongostore: invalid MONGO_URI: %w", err)
	}
	if o.Database == "" {
		o.Database = cs.Database
	}
	if o.Database == "" {
		o.Database = defaultDatabase
	}

	co := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(o.ConnectTimeout).
		SetServerSelectionTimeout(o.ConnectTimeout)
	if o.AppName != "" {
		co.SetAppName(o.AppName)
	}
	if o.MaxPoolSize > 0 {
		co.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.Client != nil {
		o.Client(co)
	}

	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	return &Store{client: client, db: client.Database(o.Database), opts: o}, nil
}

// Database reports the database name in use.
func (s *Store) Database() string { return s.db.Name() }

func (s *Store) Collection(name string) store.Collection {
	return &collection{coll: s.db.Collection(name)}
}

// Ready pings the primary unless a ping succeeded within ReadyTTL.
func (s *Store) Ready(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastError == nil && !s.readyAt.IsZero() && time.Since(s.readyAt) < s.opts.ReadyTTL {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
	defer cancel()
	if err := s.client.Ping(pctx, readpref.Primary()); err != nil {
		s.lastError = err
		s.readyAt = time.Time{}
		return store.Unavailable(Dependency, err)
	}
	s.lastError = nil
	s.readyAt = time.Now()
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Name() string { return c.coll.Name() }

func (c *collection) Find(ctx context.Context, filter store.Document, opts store.FindOptions) ([]store.Document, error) {
	fo := options.Find()
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(sortSpec(opts.Sort))
	}

	cur, err := c.coll.Find(ctx, toFilter(filter), fo)
	if err != nil {
		return nil, classify(err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, classify(err)
	}
	out := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, normalizeDocument(m))
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, filter store.Document) (store.Document, error) {
	var m bson.M
	if err := c.coll.FindOne(ctx, toFilter(filter)).Decode(&m); err != nil {
		return nil, classify(err)
	}
	return normalizeDocument(m), nil
}

func (c *collection) Count(ctx context.Context, filter store.Document) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (c *collection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	d, err := prepareInsert(doc)
	if err != nil {
		return nil, err
	}
	if _, err := c.coll.InsertOne(ctx, d); err != nil {
		return nil, classify(err)
	}
	return normalizeDocument(d), nil
}

func (c *collection) Delete(ctx context.Context, id string) (store.Document, error) {
	var m bson.M
	if err := c.coll.FindOneAndDelete(ctx, idFilter(id)).Decode(&m); err != nil {
		return nil, classify(err)
	}
	return normalizeDocument(m), nil
}

// classify maps driver errors onto the store's error vocabulary.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongostore: duplicate key: %w", err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.As(err, &topology.ServerSelectionError{}):
		return store.Unavailable(Dependency, err)
	}
	return err
}
