package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	store "github.com/hanpama/stitchgate/internal/store"
)

func normalizeDocument(m map[string]any) store.Document {
	out := make(store.Document, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case bson.ObjectID:
		return x.Hex()
	case bson.DateTime:
		return x.Time().UTC()
	case bson.M:
		return normalizeDocument(x)
	case map[string]any:
		return normalizeDocument(x)
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		return normalizeSlice(x)
	case []any:
		return normalizeSlice(x)
	}
	return v
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}

// idValue returns the values an _id string may be stored as: the ObjectID
// it encodes, if any, and the string itself.
func idValue(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{oid, id}}
	}
	return id
}

func idFilter(id string) bson.M {
	return bson.M{store.IDField: idValue(id)}
}

// toFilter copies filter, expanding a string _id so it matches documents
// keyed by either an ObjectID or a plain string.
func toFilter(filter store.Document) bson.M {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		if s, ok := v.(string); ok && k == store.IDField {
			out[k] = idValue(s)
			continue
		}
		out[k] = v
	}
	return out
}

func sortSpec(keys []store.SortKey) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: k.Field, Value: dir})
	}
	return d
}

// prepareInsert copies doc and assigns a new ObjectID when _id is absent.
// A hex string _id is stored as the ObjectID it encodes.
func prepareInsert(doc store.Document) (bson.M, error) {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	switch id := out[store.IDField].(type) {
	case nil:
		out[store.IDField] = bson.NewObjectID()
	case string:
		if id == "" {
			out[store.IDField] = bson.NewObjectID()
		} else if oid, err := bson.ObjectIDFromHex(id); err == nil {
			out[store.IDField] = oid
		}
	case bson.ObjectID:
	default:
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidID, id)
	}
	return out, nil
}
