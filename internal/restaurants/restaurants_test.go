package restaurants

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	executor "github.com/hanpama/stitchgate/internal/executor"
	language "github.com/hanpama/stitchgate/internal/language"
	store "github.com/hanpama/stitchgate/internal/store"
	memstore "github.com/hanpama/stitchgate/internal/store/memstore"
)

func query(t *testing.T, st store.Store, log *zap.Logger) *executor.ExecutionResult {
	t.Helper()
	src, err := Source(st, log)
	require.NoError(t, err)
	doc, err := language.ParseQuery(`{ restaurants { _id name } }`)
	require.NoError(t, err)
	return executor.NewExecutor(src.Runtime, src.Schema).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestRestaurants_AtMostFive(t *testing.T) {
	st := memstore.New()
	for i := 0; i < 7; i++ {
		_, err := st.Collection(Collection).Insert(context.Background(), store.Document{
			"_id":  fmt.Sprintf("r%d", i),
			"name": fmt.Sprintf("Restaurant %d", i),
			"city": "Lyon",
		})
		require.NoError(t, err)
	}

	res := query(t, st, zaptest.NewLogger(t))
	require.Empty(t, res.Errors)
	list := res.Data.(map[string]any)["restaurants"].([]any)
	require.Len(t, list, Limit)
	require.Equal(t, map[string]any{"_id": "r0", "name": "Restaurant 0"}, list[0])
}

func TestRestaurants_EmptyCollection(t *testing.T) {
	res := query(t, memstore.New(), zaptest.NewLogger(t))
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"restaurants": []any{}}, res.Data)
}

func TestRestaurants_FailureIsLoggedAndReturned(t *testing.T) {
	st := memstore.New()
	st.SetUnavailable(errors.New("connection refused"))
	core, logs := observer.New(zap.ErrorLevel)

	res := query(t, st, zap.New(core))
	require.Len(t, res.Errors, 1)
	require.Equal(t, map[string]any{"restaurants": nil}, res.Data)
	require.True(t, store.IsUnavailable(res.Errors[0]))

	entries := logs.FilterMessage("Could not fetch restaurants").All()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].ContextMap()["error"], "connection refused")
}
