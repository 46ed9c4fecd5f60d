package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("CONFIG_PATH", "")

	_, err := Load("")
	require.ErrorIs(t, err, ErrMissingMongoURI)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/app")
	t.Setenv("CONFIG_PATH", "")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, EnvDevelopment, c.Environment)
	require.False(t, c.IsProduction())
	require.False(t, c.Redact())
	require.Equal(t, "/api/graphql", c.GraphQLPath)
	require.Equal(t, 10*time.Second, c.RequestTimeout)
	require.Equal(t, "token", c.AuthCookie)
	require.True(t, c.TrustProxy)
	require.Equal(t, []string{"Content-Type", "Authorization", "X-Request-Id"}, c.CORSAllowedHeaders)
}

func TestLoad_ProductionRedactsByDefault(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "production")

	c, err := Load("")
	require.NoError(t, err)
	require.True(t, c.IsProduction())
	require.True(t, c.Redact())

	t.Setenv("REDACT_ERRORS", "false")
	c, err = Load("")
	require.NoError(t, err)
	require.False(t, c.Redact())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://from-env")
	t.Setenv("DB_HOST", "db.internal")
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mongo_uri: mongodb://${DB_HOST}:27017/menus
request_timeout: 3s
cors_allowed_origins:
  - https://app.example
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mongodb://db.internal:27017/menus", c.MongoURI)
	require.Equal(t, 3*time.Second, c.RequestTimeout)
	require.Equal(t, []string{"https://app.example"}, c.CORSAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "staging")

	_, err := Load("")
	require.ErrorContains(t, err, "Environment")

	t.Setenv("APP_ENV", "")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "could not read config file")
}
