// Package restaurants is the hand-written schema source: a read-only view of
// the restaurants collection.
package restaurants

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	compose "github.com/hanpama/stitchgate/internal/compose"
	resolver "github.com/hanpama/stitchgate/internal/resolver"
	schema "github.com/hanpama/stitchgate/internal/schema"
	store "github.com/hanpama/stitchgate/internal/store"
)

const (
	// SourceName names this source in composition errors.
	SourceName = "restaurants"
	// Collection is the collection the resolvers read.
	Collection = "restaurants"
	// Limit caps the number of restaurants returned.
	Limit = 5
)

// SDL declares the types of this source.
const SDL = `
type Query {
  restaurants: [Restaurant]
}

type Restaurant {
  _id: ID!
  name: String
}
`

// Source returns the executable schema reading restaurants from st. Failures
// are logged on log and returned to the client.
func Source(st store.Store, log *zap.Logger) (*compose.ExecutableSchema, error) {
	sch, err := schema.BuildFromSDL(SDL)
	if err != nil {
		return nil, err
	}
	r := &resolvers{coll: st.Collection(Collection), log: log}
	bindings := resolver.NewMap().Field("Query", "restaurants", r.restaurants)
	return compose.NewExecutableSchema(SourceName, compose.KindHandwritten, sch, bindings)
}

type resolvers struct {
	coll store.Collection
	log  *zap.Logger
}

// restaurants returns at most Limit documents in natural order, and an empty
// list for an empty collection.
func (r *resolvers) restaurants(ctx context.Context, _ any, _ map[string]any) (any, error) {
	docs, err := r.coll.Find(ctx, nil, store.FindOptions{Limit: Limit})
	if err != nil {
		r.log.Error("Could not fetch restaurants", zap.Error(err))
		return nil, errors.Wrap(err, "fetch restaurants")
	}
	return lo.ToAnySlice(docs), nil
}
