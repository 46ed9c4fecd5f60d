// Package memstore is an in-memory store.Store used for tests and local runs
// without a database.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	store "github.com/hanpama/stitchgate/internal/store"
)

// Store keeps collections in memory. The zero value is not usable; use New.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	unavailable error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

// SetUnavailable makes Ready and every collection operation fail with a
// DependencyUnavailableError wrapping err. nil restores the store.
func (s *Store) SetUnavailable(err error) {
	s.mu.Lock()
	s.unavailable = err
	s.mu.Unlock()
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable != nil {
		return store.Unavailable("memstore", s.unavailable)
	}
	return nil
}

func (s *Store) Collection(name string) store.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{name: name, owner: s}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return store.Unavailable("memstore", err)
	}
	return s.check()
}

func (s *Store) Close(context.Context) error { return nil }

type collection struct {
	name  string
	owner *Store

	mu   sync.RWMutex
	docs []store.Document
}

func (c *collection) Name() string { return c.name }

func (c *collection) Find(ctx context.Context, filter store.Document, opts store.FindOptions) ([]store.Document, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	matched := make([]store.Document, 0, len(c.docs))
	for _, d := range c.docs {
		if matches(d, filter) {
			matched = append(matched, clone(d))
		}
	}
	c.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, k := range opts.Sort {
				cmp := compare(matched[i][k.Field], matched[j][k.Field])
				if cmp == 0 {
					continue
				}
				if k.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			return []store.Document{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (c *collection) FindOne(ctx context.Context, filter store.Document) (store.Document, error) {
	docs, err := c.Find(ctx, filter, store.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

func (c *collection) Count(ctx context.Context, filter store.Document) (int64, error) {
	docs, err := c.Find(ctx, filter, store.FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *collection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	d := clone(doc)
	id, ok := d[store.IDField]
	if !ok || id == nil || id == "" {
		d[store.IDField] = uuid.NewString()
	} else if _, isString := id.(string); !isString {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidID, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if existing[store.IDField] == d[store.IDField] {
			return nil, fmt.Errorf("memstore: duplicate _id %v in %s", d[store.IDField], c.name)
		}
	}
	c.docs = append(c.docs, d)
	return clone(d), nil
}

func (c *collection) Delete(ctx context.Context, id string) (store.Document, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.docs {
		if d[store.IDField] == id {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

func matches(d, filter store.Document) bool {
	for k, v := range filter {
		if !reflect.DeepEqual(d[k], v) {
			return false
		}
	}
	return true
}

// clone copies the top level; nested values are shared and never mutated.
func clone(d store.Document) store.Document {
	out := make(store.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// compare orders nil first, then numbers, then strings by their natural order.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	af, aNum := number(a)
	bf, bNum := number(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
