// Package store defines the document store the gateway's resolvers read
// from and write to. Documents are plain maps; the "_id" key always holds a
// string.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Document is one record. Nested documents are map[string]any and arrays
// are []any.
type Document = map[string]any

// IDField is the primary key of every document.
const IDField = "_id"

// SortKey orders Find results by Field.
type SortKey struct {
	Field string
	Desc  bool
}

// FindOptions bounds a Find call. A zero Limit means no limit.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  []SortKey
}

// Collection is a named set of documents. Filters are equality matches on
// top-level keys.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter Document, opts FindOptions) ([]Document, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, filter Document) (Document, error)
	Count(ctx context.Context, filter Document) (int64, error)
	// Insert stores doc, assigning an _id when absent, and returns the stored
	// document.
	Insert(ctx context.Context, doc Document) (Document, error)
	// Delete removes and returns the document with the given _id, or
	// ErrNotFound.
	Delete(ctx context.Context, id string) (Document, error)
}

// Store hands out collections over one shared connection.
type Store interface {
	Collection(name string) Collection
	// Ready reports whether the backing connection can serve requests. It
	// returns a *DependencyUnavailableError when it cannot.
	Ready(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	// ErrNotFound is returned by FindOne and Delete when no document matches.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidID is returned for an _id the backend cannot represent.
	ErrInvalidID = errors.New("store: invalid document id")
)

// DependencyUnavailableError reports that a backing dependency could not be
// reached. Clients may retry.
type DependencyUnavailableError struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as a DependencyUnavailableError for dependency.
func Unavailable(dependency string, err error) error {
	return &DependencyUnavailableError{Dependency: dependency, Err: err}
}

// IsUnavailable reports whether err (or anything it wraps) is a
// DependencyUnavailableError.
func IsUnavailable(err error) bool {
	var d *DependencyUnavailableError
	return errors.As(err, &d)
}
