package store

import (
	"context"
	"time"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
)

// Observe wraps s so that every collection operation and readiness probe is
// published on the event bus.
func Observe(s Store, dependency string) Store {
	return &observed{Store: s, dependency: dependency}
}

type observed struct {
	Store
	dependency string
}

func (o *observed) Collection(name string) Collection {
	return &observedCollection{c: o.Store.Collection(name)}
}

func (o *observed) Ready(ctx context.Context) error {
	start := time.Now()
	err := o.Store.Ready(ctx)
	eventbus.Publish(ctx, events.DependencyCheck{Dependency: o.dependency, Err: err, Duration: time.Since(start)})
	return err
}

type observedCollection struct {
	c Collection
}

func (o *observedCollection) track(ctx context.Context, op string) func(error) {
	start := time.Now()
	eventbus.Publish(ctx, events.StoreOpStart{Collection: o.c.Name(), Op: op})
	return func(err error) {
		eventbus.Publish(ctx, events.StoreOpFinish{Collection: o.c.Name(), Op: op, Err: err, Duration: time.Since(start)})
	}
}

func (o *observedCollection) Name() string { return o.c.Name() }

func (o *observedCollection) Find(ctx context.Context, filter Document, opts FindOptions) (docs []Document, err error) {
	done := o.track(ctx, "find")
	defer func() { done(err) }()
	return o.c.Find(ctx, filter, opts)
}

func (o *observedCollection) FindOne(ctx context.Context, filter Document) (doc Document, err error) {
	done := o.track(ctx, "findOne")
	defer func() { done(err) }()
	return o.c.FindOne(ctx, filter)
}

func (o *observedCollection) Count(ctx context.Context, filter Document) (n int64, err error) {
	done := o.track(ctx, "count")
	defer func() { done(err) }()
	return o.c.Count(ctx, filter)
}

func (o *observedCollection) Insert(ctx context.Context, doc Document) (out Document, err error) {
	done := o.track(ctx, "insert")
	defer func() { done(err) }()
	return o.c.Insert(ctx, doc)
}

func (o *observedCollection) Delete(ctx context.Context, id string) (doc Document, err error) {
	done := o.track(ctx, "delete")
	defer func() { done(err) }()
	return o.c.Delete(ctx, id)
}
