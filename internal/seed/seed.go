// Package seed fills an empty development database with demo data.
package seed

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	config "github.com/hanpama/stitchgate/internal/config"
	restaurants "github.com/hanpama/stitchgate/internal/restaurants"
	store "github.com/hanpama/stitchgate/internal/store"
)

// Restaurants are the demo documents inserted into an empty restaurants
// collection.
var Restaurants = []store.Document{
	{"name": "Morris Park Bake Shop", "cuisine": "Bakery", "borough": "Bronx"},
	{"name": "Wendy'S", "cuisine": "Hamburgers", "borough": "Brooklyn"},
	{"name": "Dj Reynolds Pub And Restaurant", "cuisine": "Irish", "borough": "Manhattan"},
	{"name": "Riviera Caterer", "cuisine": "American", "borough": "Brooklyn"},
	{"name": "Tov Kosher Kitchen", "cuisine": "Jewish/Kosher", "borough": "Queens"},
	{"name": "Brunos On The Boulevard", "cuisine": "American", "borough": "Queens"},
	{"name": "Kosher Island", "cuisine": "Jewish/Kosher", "borough": "Staten Island"},
}

// Enabled reports whether cfg asks for seeding. Production never seeds.
func Enabled(cfg *config.Config) bool {
	return cfg.SeedDemoData && !cfg.IsProduction()
}

// Run inserts the demo restaurants when seeding is enabled and the
// collection is empty. It returns the number of inserted documents.
func Run(ctx context.Context, cfg *config.Config, st store.Store, log *zap.Logger) (int, error) {
	if !Enabled(cfg) {
		return 0, nil
	}
	c := st.Collection(restaurants.Collection)
	n, err := c.Count(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "seed: count restaurants")
	}
	if n > 0 {
		log.Debug("Seed skipped, restaurants already present", zap.Int64("count", n))
		return 0, nil
	}
	for i, doc := range Restaurants {
		if _, err := c.Insert(ctx, cloneDoc(doc)); err != nil {
			return i, errors.Wrapf(err, "seed: insert %v", doc["name"])
		}
	}
	log.Info("Seeded demo restaurants", zap.Int("count", len(Restaurants)))
	return len(Restaurants), nil
}

func cloneDoc(d store.Document) store.Document {
	out := make(store.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
