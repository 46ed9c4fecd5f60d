package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/stitchgate/internal/executor"
	language "github.com/hanpama/stitchgate/internal/language"
	schema "github.com/hanpama/stitchgate/internal/schema"
)

const kitchenSDL = `
type Query {
  chefs: [Chef!]!
  chef(id: ID!): Chef
}

type Chef {
  id: ID!
  name: String
  level: Level
  dishes: [Dish!]!
}

type Dish {
  title: String
  servedAt: Time
}

enum Level { JUNIOR SENIOR }

scalar Time
`

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(kitchenSDL)
	require.NoError(t, err)
	return sch
}

func run(t *testing.T, rt executor.Runtime, sch *schema.Schema, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func TestBind_MarksBoundFieldsAsync(t *testing.T) {
	sch := mustSchema(t)
	_, err := NewMap().
		Field("Query", "chefs", func(context.Context, any, map[string]any) (any, error) { return nil, nil }).
		Batch("Chef", "dishes", func(context.Context, []any, []map[string]any) ([]any, error) { return nil, nil }).
		Bind(sch)
	require.NoError(t, err)

	require.True(t, sch.Types["Query"].Field("chefs").Async)
	require.True(t, sch.Types["Chef"].Field("dishes").Async)
	require.False(t, sch.Types["Chef"].Field("name").Async)
	require.False(t, sch.Types["Query"].Field("chef").Async)
}

func TestBind_RejectsUndeclaredField(t *testing.T) {
	for _, k := range [][2]string{{"Query", "waiters"}, {"Waiter", "name"}} {
		_, err := NewMap().
			Field(k[0], k[1], func(context.Context, any, map[string]any) (any, error) { return nil, nil }).
			Bind(mustSchema(t))
		var unbound *UnboundFieldError
		require.True(t, errors.As(err, &unbound), "binding %v", k)
		require.Equal(t, k[0]+"."+k[1], unbound.Key)
	}
}

func TestRuntime_ExecutesBoundAndProjectedFields(t *testing.T) {
	sch := mustSchema(t)
	served := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var batchCalls atomic.Int32

	rt, err := NewMap().
		Field("Query", "chefs", func(context.Context, any, map[string]any) (any, error) {
			return []any{
				map[string]any{"id": int64(1), "name": "Ada", "level": "SENIOR"},
				map[string]any{"id": int64(2), "name": "Lin", "level": "JUNIOR"},
			}, nil
		}).
		Batch("Chef", "dishes", func(_ context.Context, sources []any, _ []map[string]any) ([]any, error) {
			batchCalls.Add(1)
			out := make([]any, len(sources))
			for i, s := range sources {
				name := s.(map[string]any)["name"].(string)
				out[i] = []any{map[string]any{"title": name + "'s soup", "servedAt": served}}
			}
			return out, nil
		}).
		Bind(sch)
	require.NoError(t, err)

	res := run(t, rt, sch, `{ chefs { id name level dishes { title servedAt } } }`, nil)
	require.Empty(t, res.Errors)
	want := map[string]any{"chefs": []any{
		map[string]any{"id": "1", "name": "Ada", "level": "SENIOR", "dishes": []any{
			map[string]any{"title": "Ada's soup", "servedAt": "2024-05-01T12:00:00Z"},
		}},
		map[string]any{"id": "2", "name": "Lin", "level": "JUNIOR", "dishes": []any{
			map[string]any{"title": "Lin's soup", "servedAt": "2024-05-01T12:00:00Z"},
		}},
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, int32(1), batchCalls.Load(), "one batch call per depth")
}

func TestRuntime_PerTaskErrorsAndArgs(t *testing.T) {
	sch := mustSchema(t)
	rt, err := NewMap().
		Field("Query", "chef", func(_ context.Context, _ any, args map[string]any) (any, error) {
			if args["id"] == "404" {
				return nil, errors.New("chef not found")
			}
			return map[string]any{"id": args["id"], "name": "Ada"}, nil
		}).
		Bind(sch)
	require.NoError(t, err)

	res := run(t, rt, sch, `{ a: chef(id: "1") { name } b: chef(id: "404") { name } }`, nil)
	require.Equal(t, map[string]any{"a": map[string]any{"name": "Ada"}, "b": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "chef not found", res.Errors[0].Message)
	require.Equal(t, executor.Path{"b"}, res.Errors[0].Path)
}

func TestRuntime_BatchFailures(t *testing.T) {
	tasks := []executor.AsyncResolveTask{
		{ObjectType: "Chef", Field: "dishes", Source: map[string]any{}},
		{ObjectType: "Query", Field: "chefs"},
		{ObjectType: "Chef", Field: "dishes", Source: map[string]any{}},
	}

	t.Run("group error", func(t *testing.T) {
		rt, err := NewMap().
			Batch("Chef", "dishes", func(context.Context, []any, []map[string]any) ([]any, error) {
				return nil, errors.New("kitchen closed")
			}).
			Field("Query", "chefs", func(context.Context, any, map[string]any) (any, error) { return []any{}, nil }).
			Bind(mustSchema(t))
		require.NoError(t, err)

		got := rt.BatchResolveAsync(context.Background(), tasks)
		require.Len(t, got, 3)
		require.EqualError(t, got[0].Error, "kitchen closed")
		require.NoError(t, got[1].Error)
		require.Equal(t, []any{}, got[1].Value)
		require.EqualError(t, got[2].Error, "kitchen closed")
	})

	t.Run("short result and panic", func(t *testing.T) {
		rt, err := NewMap().
			Batch("Chef", "dishes", func(context.Context, []any, []map[string]any) ([]any, error) {
				return []any{nil}, nil
			}).
			Field("Query", "chefs", func(context.Context, any, map[string]any) (any, error) { panic("oven on fire") }).
			Bind(mustSchema(t))
		require.NoError(t, err)

		got := rt.BatchResolveAsync(context.Background(), tasks)
		require.ErrorContains(t, got[0].Error, "returned 1 values for 2 sources")
		require.ErrorContains(t, got[1].Error, "oven on fire")
	})

	t.Run("unbound task", func(t *testing.T) {
		rt, err := NewMap().Bind(mustSchema(t))
		require.NoError(t, err)
		got := rt.BatchResolveAsync(context.Background(), tasks[1:2])
		require.EqualError(t, got[0].Error, "no resolver bound for Query.chefs")
	})
}

func TestRuntime_ResolveTypeAndLeaves(t *testing.T) {
	rt, err := NewMap().
		Scalar("Time", func(v any) (any, error) { return "custom", nil }).
		Bind(mustSchema(t))
	require.NoError(t, err)
	ctx := context.Background()

	name, err := rt.ResolveType(ctx, "Node", map[string]any{"__typename": "Chef"})
	require.NoError(t, err)
	require.Equal(t, "Chef", name)
	_, err = rt.ResolveType(ctx, "Node", "plain")
	require.Error(t, err)

	cases := []struct {
		typ     string
		in      any
		want    any
		wantErr bool
	}{
		{typ: "Int", in: int64(5), want: 5},
		{typ: "Int", in: 2.5, wantErr: true},
		{typ: "Float", in: 3, want: float64(3)},
		{typ: "ID", in: int32(9), want: "9"},
		{typ: "Boolean", in: "yes", wantErr: true},
		{typ: "Level", in: "SENIOR", want: "SENIOR"},
		{typ: "Level", in: "CHEF", wantErr: true},
		{typ: "Time", in: time.Now(), want: "custom"},
	}
	for _, c := range cases {
		got, err := rt.SerializeLeafValue(ctx, c.typ, c.in)
		if c.wantErr {
			require.Error(t, err, "%s(%v)", c.typ, c.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, c.want, got, "%s(%v)", c.typ, c.in)
	}
}

func TestRuntime_MutationFieldsRunSerially(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
		type Query { ok: Boolean }
		type Mutation { first: Boolean second: Boolean }
	`)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string, delay time.Duration) Func {
		return func(context.Context, any, map[string]any) (any, error) {
			time.Sleep(delay)
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return true, nil
		}
	}
	rt, err := NewMap().
		Field("Mutation", "first", record("first", 50*time.Millisecond)).
		Field("Mutation", "second", record("second", 0)).
		Bind(sch)
	require.NoError(t, err)

	res := run(t, rt, sch, `mutation { first second }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"first": true, "second": true}, res.Data)
	require.Equal(t, []string{"first", "second"}, order)
}
