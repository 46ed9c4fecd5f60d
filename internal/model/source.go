package model

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	compose "github.com/hanpama/stitchgate/internal/compose"
	resolver "github.com/hanpama/stitchgate/internal/resolver"
	store "github.com/hanpama/stitchgate/internal/store"
)

// SourceName names the generated source in composition errors.
const SourceName = "models"

// Source compiles models into an executable schema whose resolvers read and
// write st.
func Source(models []Model, st store.Store) (*compose.ExecutableSchema, error) {
	if err := Validate(models); err != nil {
		return nil, err
	}
	bindings := resolver.NewMap().
		Scalar(string(TypeDate), serializeDate).
		Scalar(string(TypeJSON), func(v any) (any, error) { return v, nil })

	for _, m := range models {
		r := &modelResolvers{model: m, coll: st.Collection(m.CollectionName())}
		bindings.
			Batch("Query", m.singleField(), r.one).
			Batch("Query", m.multiField(), r.many).
			Field("Mutation", m.createField(), r.create).
			Field("Mutation", m.deleteField(), r.delete)
	}
	return compose.NewExecutableSchema(SourceName, compose.KindGenerated, BuildSchema(models), bindings)
}

type modelResolvers struct {
	model Model
	coll  store.Collection
}

// one loads every distinct _id of the batch once.
func (r *modelResolvers) one(ctx context.Context, _ []any, args []map[string]any) ([]any, error) {
	ids := lo.Uniq(lo.Map(args, func(a map[string]any, _ int) string {
		id, _ := a[store.IDField].(string)
		return id
	}))
	found := make(map[string]store.Document, len(ids))
	for _, id := range ids {
		doc, err := r.coll.FindOne(ctx, store.Document{store.IDField: id})
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "find %s %q", r.model.Name, id)
		}
		found[id] = doc
	}
	return lo.Map(args, func(a map[string]any, _ int) any {
		id, _ := a[store.IDField].(string)
		if doc, ok := found[id]; ok {
			return doc
		}
		return nil
	}), nil
}

func (r *modelResolvers) many(ctx context.Context, _ []any, args []map[string]any) ([]any, error) {
	total, err := r.coll.Count(ctx, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "count %s", r.model.PluralName())
	}
	out := make([]any, len(args))
	for i, a := range args {
		limit, offset := intArg(a, "limit", DefaultLimit), intArg(a, "offset", 0)
		if limit < 0 || offset < 0 {
			return nil, errors.Errorf("limit and offset must not be negative")
		}
		docs := []store.Document{}
		if limit > 0 {
			docs, err = r.coll.Find(ctx, nil, store.FindOptions{
				Limit: int64(min(limit, MaxLimit)),
				Skip:  int64(offset),
			})
			if err != nil {
				return nil, errors.Wrapf(err, "list %s", r.model.PluralName())
			}
		}
		out[i] = map[string]any{
			"results":    lo.ToAnySlice(docs),
			"totalCount": total,
		}
	}
	return out, nil
}

func (r *modelResolvers) create(ctx context.Context, _ any, args map[string]any) (any, error) {
	data, _ := args["data"].(map[string]any)
	doc, err := r.toDocument(data)
	if err != nil {
		return nil, err
	}
	out, err := r.coll.Insert(ctx, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", r.model.Name)
	}
	return out, nil
}

func (r *modelResolvers) delete(ctx context.Context, _ any, args map[string]any) (any, error) {
	id, _ := args[store.IDField].(string)
	out, err := r.coll.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Errorf("%s %q not found", r.model.Name, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "delete %s %q", r.model.Name, id)
	}
	return out, nil
}

// toDocument keeps only declared fields and parses Date values.
func (r *modelResolvers) toDocument(data map[string]any) (store.Document, error) {
	doc := make(store.Document, len(data))
	for _, f := range r.model.Fields {
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		if f.Type == TypeDate && v != nil {
			parsed, err := parseDates(v)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name)
			}
			v = parsed
		}
		doc[f.Name] = v
	}
	return doc, nil
}

func parseDates(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return time.Parse(time.RFC3339, x)
	case time.Time:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			t, err := parseDates(e)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
	return nil, errors.Errorf("Date cannot represent %v (%T)", v, v)
}

func serializeDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil, errors.Errorf("Date cannot represent %q", x)
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	return nil, errors.Errorf("Date cannot represent %v (%T)", v, v)
}

func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
