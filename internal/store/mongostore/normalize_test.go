package mongostore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	store "github.com/hanpama/stitchgate/internal/store"
)

func TestNormalizeDocument(t *testing.T) {
	oid := bson.NewObjectID()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got := normalizeDocument(bson.M{
		"_id":     oid,
		"name":    "Noma",
		"opened":  bson.NewDateTimeFromTime(at),
		"address": bson.D{{Key: "city", Value: "Copenhagen"}},
		"tags":    bson.A{"nordic", bson.M{"stars": int32(3)}},
	})

	require.Equal(t, store.Document{
		"_id":     oid.Hex(),
		"name":    "Noma",
		"opened":  at,
		"address": map[string]any{"city": "Copenhagen"},
		"tags":    []any{"nordic", store.Document{"stars": int32(3)}},
	}, got)
}

func TestToFilter_ExpandsHexID(t *testing.T) {
	oid := bson.NewObjectID()

	f := toFilter(store.Document{"_id": oid.Hex(), "name": "Noma"})
	require.Equal(t, bson.M{"$in": bson.A{oid, oid.Hex()}}, f["_id"])
	require.Equal(t, "Noma", f["name"])

	f = toFilter(store.Document{"_id": "plain"})
	require.Equal(t, "plain", f["_id"])
}

func TestPrepareInsert(t *testing.T) {
	d, err := prepareInsert(store.Document{"name": "Noma"})
	require.NoError(t, err)
	require.IsType(t, bson.ObjectID{}, d["_id"])

	oid := bson.NewObjectID()
	d, err = prepareInsert(store.Document{"_id": oid.Hex()})
	require.NoError(t, err)
	require.Equal(t, oid, d["_id"])

	d, err = prepareInsert(store.Document{"_id": "custom"})
	require.NoError(t, err)
	require.Equal(t, "custom", d["_id"])

	_, err = prepareInsert(store.Document{"_id": 7})
	require.ErrorIs(t, err, store.ErrInvalidID)
}

func TestSortSpec(t *testing.T) {
	require.Equal(t,
		bson.D{{Key: "stars", Value: -1}, {Key: "name", Value: 1}},
		sortSpec([]store.SortKey{{Field: "stars", Desc: true}, {Field: "name"}}),
	)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))
	require.ErrorIs(t, classify(mongo.ErrNoDocuments), store.ErrNotFound)
	require.True(t, store.IsUnavailable(classify(mongo.ErrClientDisconnected)))

	other := errors.New("bad query")
	require.Equal(t, other, classify(other))
}

func TestOpen_RejectsInvalidURI(t *testing.T) {
	_, err := Open("not-a-uri")
	require.ErrorContains(t, err, "invalid MONGO_URI")
}

func TestOpen_DatabaseFromURI(t *testing.T) {
	s, err := Open("mongodb://localhost:27017/menus", WithConnectTimeout(10*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, "menus", s.Database())

	s, err = Open("mongodb://localhost:27017", WithDatabase("alt"))
	require.NoError(t, err)
	require.Equal(t, "alt", s.Database())
}
