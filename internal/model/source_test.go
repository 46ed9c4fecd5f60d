package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/stitchgate/internal/executor"
	language "github.com/hanpama/stitchgate/internal/language"
	schema "github.com/hanpama/stitchgate/internal/schema"
	store "github.com/hanpama/stitchgate/internal/store"
	memstore "github.com/hanpama/stitchgate/internal/store/memstore"
)

func dishModels() []Model {
	return []Model{{
		Name:   "Dish",
		Plural: "Dishes",
		Fields: []Field{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "price", Type: TypeFloat},
			{Name: "servedSince", Type: TypeDate},
		},
	}}
}

func run(t *testing.T, ex *executor.Executor, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return ex.ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func TestBuildSchema_SDL(t *testing.T) {
	sdl := schema.Render(BuildSchema(dishModels()))

	for _, want := range []string{
		"type Dish {",
		"_id: ID!",
		"title: String!",
		"type DishMultiOutput {",
		"results: [Dish!]!",
		"totalCount: Int!",
		"input CreateDishDataInput {",
		"dish(_id: ID!): Dish",
		"dishes(limit: Int = 10, offset: Int = 0): DishMultiOutput!",
		"createDish(data: CreateDishDataInput!): Dish",
		"deleteDish(_id: ID!): Dish",
		"scalar Date",
	} {
		require.Contains(t, sdl, want)
	}

	// the rendered SDL must be accepted by the SDL loader
	_, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
}

func TestSource_CRUD(t *testing.T) {
	st := memstore.New()
	src, err := Source(dishModels(), st)
	require.NoError(t, err)
	require.True(t, src.Schema.Types["Query"].Field("dishes").Async)

	ex := executor.NewExecutor(src.Runtime, src.Schema)

	created := run(t, ex, `mutation($d: CreateDishDataInput!) { createDish(data: $d) { _id title servedSince } }`,
		map[string]any{"d": map[string]any{"title": "Soup", "servedSince": "2024-03-01T10:00:00Z"}})
	require.Empty(t, created.Errors)
	dish := created.Data.(map[string]any)["createDish"].(map[string]any)
	id := dish["_id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "2024-03-01T10:00:00Z", dish["servedSince"])

	stored, err := st.Collection("dishes").FindOne(context.Background(), store.Document{"_id": id})
	require.NoError(t, err)
	require.IsType(t, time.Time{}, stored["servedSince"])

	run(t, ex, `mutation { createDish(data: {title: "Bread", price: 2.5}) { _id } }`, nil)

	res := run(t, ex, `{ dishes(limit: 1) { totalCount results { title } } one: dish(_id: "`+id+`") { title } none: dish(_id: "nope") { title } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"dishes": map[string]any{
			"totalCount": 2,
			"results":    []any{map[string]any{"title": "Soup"}},
		},
		"one":  map[string]any{"title": "Soup"},
		"none": nil,
	}, res.Data)

	res = run(t, ex, `{ dishes(offset: 5) { totalCount results { title } } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"dishes": map[string]any{"totalCount": 2, "results": []any{}}}, res.Data)

	res = run(t, ex, `mutation { deleteDish(_id: "`+id+`") { title } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"deleteDish": map[string]any{"title": "Soup"}}, res.Data)

	res = run(t, ex, `mutation { deleteDish(_id: "`+id+`") { title } }`, nil)
	require.Len(t, res.Errors, 1)
	require.True(t, strings.Contains(res.Errors[0].Message, "not found"), res.Errors[0].Message)
}

func TestSource_NegativeLimit(t *testing.T) {
	src, err := Source(dishModels(), memstore.New())
	require.NoError(t, err)

	res := run(t, executor.NewExecutor(src.Runtime, src.Schema), `{ dishes(limit: -1) { totalCount } }`, nil)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "must not be negative")
}

func TestSource_StoreUnavailable(t *testing.T) {
	st := memstore.New()
	src, err := Source(dishModels(), st)
	require.NoError(t, err)
	st.SetUnavailable(errors.New("connection refused"))

	res := run(t, executor.NewExecutor(src.Runtime, src.Schema), `{ dish(_id: "x") { title } }`, nil)
	require.Len(t, res.Errors, 1)
	require.True(t, store.IsUnavailable(res.Errors[0]), "cause must stay reachable")
}

func TestSource_InvalidModels(t *testing.T) {
	_, err := Source([]Model{{Name: "Query"}}, memstore.New())
	require.Error(t, err)
}
