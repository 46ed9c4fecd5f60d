package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/stitchgate/internal/schema"
)

type panickingBatchRuntime struct {
	*MockRuntime
}

func (panickingBatchRuntime) BatchResolveAsync(context.Context, []AsyncResolveTask) []AsyncResolveResult {
	panic("batch exploded")
}

type shortBatchRuntime struct {
	*MockRuntime
}

func (shortBatchRuntime) BatchResolveAsync(context.Context, []AsyncResolveTask) []AsyncResolveResult {
	return nil
}

func recoverySchema() *schema.Schema {
	return newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("sync", "", schema.NamedType("String")),
			schema.NewField("async", "", schema.NamedType("String")).SetAsync(true),
		),
	)
}

func TestResolveSync_PanicBecomesResolverError(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.sync": func(context.Context, any, map[string]any) (any, error) { panic("boom") },
	})
	res := NewExecutor(rt, recoverySchema()).ExecuteRequest(context.Background(), mustParseQuery(t, "{ sync }"), "", nil, nil)

	require.Equal(t, map[string]any{"sync": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "panic: boom", res.Errors[0].Message)
	require.Equal(t, Path{"sync"}, res.Errors[0].Path)

	var rerr *ResolverError
	require.True(t, errors.As(res.Errors[0], &rerr))
	require.Equal(t, "Query", rerr.ObjectType)
	require.Equal(t, "sync", rerr.Field)
}

func TestBatchResolve_PanicFailsEveryTask(t *testing.T) {
	rt := panickingBatchRuntime{NewMockRuntime(map[string]MockResolver{
		"Query.sync": NewMockValueResolver("S"),
	})}
	res := NewExecutor(rt, recoverySchema()).ExecuteRequest(context.Background(), mustParseQuery(t, "{ sync a: async b: async }"), "", nil, nil)

	require.Equal(t, map[string]any{"sync": "S", "a": nil, "b": nil}, res.Data)
	require.Len(t, res.Errors, 2)
	for _, e := range res.Errors {
		require.Equal(t, "panic: batch exploded", e.Message)
		var rerr *ResolverError
		require.True(t, errors.As(e, &rerr))
		require.Equal(t, "async", rerr.Field)
	}
}

func TestBatchResolve_ResultCountMismatch(t *testing.T) {
	rt := shortBatchRuntime{NewMockRuntime(nil)}
	res := NewExecutor(rt, recoverySchema()).ExecuteRequest(context.Background(), mustParseQuery(t, "{ async }"), "", nil, nil)

	require.Equal(t, map[string]any{"async": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "0 results for 1 tasks")
}

func TestBatchResolve_CancelledContext(t *testing.T) {
	called := false
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.async": func(context.Context, any, map[string]any) (any, error) {
			called = true
			return "A", nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewExecutor(rt, recoverySchema()).ExecuteRequest(ctx, mustParseQuery(t, "{ async }"), "", nil, nil)

	require.False(t, called, "batch must not run on a cancelled context")
	require.Len(t, res.Errors, 1)
	require.True(t, errors.Is(res.Errors[0], context.Canceled))
}
