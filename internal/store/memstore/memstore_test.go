package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	store "github.com/hanpama/stitchgate/internal/store"
)

func seeded(t *testing.T) store.Collection {
	t.Helper()
	c := New().Collection("restaurants")
	for _, d := range []store.Document{
		{"_id": "r1", "name": "Noma", "stars": int64(3)},
		{"_id": "r2", "name": "Atomix", "stars": int64(2)},
		{"_id": "r3", "name": "Central", "stars": int64(3)},
	} {
		_, err := c.Insert(context.Background(), d)
		require.NoError(t, err)
	}
	return c
}

func TestCollection_FindWithOptions(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()

	all, err := c.Find(ctx, nil, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "r1", all[0]["_id"], "insertion order without sort")

	sorted, err := c.Find(ctx, nil, store.FindOptions{Sort: []store.SortKey{{Field: "stars", Desc: true}, {Field: "name"}}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, []store.Document{{"_id": "r1", "name": "Noma", "stars": int64(3)}}, sorted)

	filtered, err := c.Find(ctx, store.Document{"stars": int64(3)}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	empty, err := c.Find(ctx, nil, store.FindOptions{Skip: 10})
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	n, err := c.Count(ctx, store.Document{"stars": int64(2)})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestCollection_InsertAssignsIDAndCopies(t *testing.T) {
	c := New().Collection("menus")
	in := store.Document{"title": "Lunch"}
	out, err := c.Insert(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, out["_id"])
	require.NotContains(t, in, "_id", "input must not be modified")

	out["title"] = "changed"
	got, err := c.FindOne(context.Background(), store.Document{"_id": out["_id"]})
	require.NoError(t, err)
	require.Equal(t, "Lunch", got["title"])

	_, err = c.Insert(context.Background(), store.Document{"_id": out["_id"]})
	require.ErrorContains(t, err, "duplicate _id")

	_, err = c.Insert(context.Background(), store.Document{"_id": 42})
	require.ErrorIs(t, err, store.ErrInvalidID)
}

func TestCollection_DeleteAndNotFound(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()

	d, err := c.Delete(ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, "Atomix", d["name"])

	_, err = c.Delete(ctx, "r2")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = c.FindOne(ctx, store.Document{"_id": "r2"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Unavailable(t *testing.T) {
	s := New()
	require.NoError(t, s.Ready(context.Background()))

	s.SetUnavailable(errors.New("connection refused"))
	err := s.Ready(context.Background())
	require.True(t, store.IsUnavailable(err))
	_, err = s.Collection("x").Find(context.Background(), nil, store.FindOptions{})
	require.True(t, store.IsUnavailable(err))

	s.SetUnavailable(nil)
	require.NoError(t, s.Ready(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, store.IsUnavailable(s.Ready(ctx)))
}
