package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	compose "github.com/hanpama/stitchgate/internal/compose"
	config "github.com/hanpama/stitchgate/internal/config"
)

const reviewsYAML = `
models:
  - name: Review
    fields:
      - {name: stars, type: Int, required: true}
      - {name: body, type: String}
`

// A generated Restaurant type that differs from the handwritten one.
const conflictingYAML = `
models:
  - name: Restaurant
    fields:
      - {name: cuisine, type: String}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help", "serve"}, &out))
	require.Contains(t, out.String(), "serve FLAGS")

	require.Error(t, run(context.Background(), []string{"nope"}, &out))
	require.Error(t, run(context.Background(), nil, &out))
}

func TestCompileSDL(t *testing.T) {
	models := writeFile(t, "models.yaml", reviewsYAML)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"compile-sdl", "-models", models}, &out))

	sdl := out.String()
	require.Contains(t, sdl, "type Query {")
	require.Contains(t, sdl, "restaurants: [Restaurant]")
	require.Contains(t, sdl, "reviews(limit: Int = 10, offset: Int = 0): ReviewMultiOutput!")
	require.Contains(t, sdl, "createReview(data: CreateReviewDataInput!): Review")

	outFile := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, run(context.Background(), []string{"compile-sdl", "-models", models, "-out", outFile}, &out))
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Equal(t, sdl, string(written))
}

func TestCompileSDL_Conflict(t *testing.T) {
	models := writeFile(t, "models.yaml", conflictingYAML)
	err := run(context.Background(), []string{"compile-sdl", "-models", models}, new(bytes.Buffer))
	require.NotEmpty(t, compose.Conflicts(err), "got %v", err)
}

func TestServe_MissingMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("CONFIG_PATH", "")
	err := run(context.Background(), []string{"serve"}, new(bytes.Buffer))
	require.True(t, errors.Is(err, config.ErrMissingMongoURI), "got %v", err)
}

func TestServe_ConflictNeverStarts(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://127.0.0.1:1/stitchgate_test")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("MODELS_FILE", writeFile(t, "models.yaml", conflictingYAML))
	t.Setenv("MODELS_DESCRIPTOR_SET", "")

	err := run(context.Background(), []string{"serve"}, new(bytes.Buffer))
	conflicts := compose.Conflicts(err)
	require.NotEmpty(t, conflicts, "got %v", err)
	types := make([]string, len(conflicts))
	for i, c := range conflicts {
		types[i] = c.Type
	}
	require.Contains(t, types, "Restaurant")
}
