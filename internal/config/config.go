// Package config loads the gateway configuration from the environment, .env
// files and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ErrMissingMongoURI is returned by Load when MONGO_URI is not set.
var ErrMissingMongoURI = errors.New("MONGO_URI env variable is not defined")

type Config struct {
	Environment string `yaml:"environment" env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`

	MongoURI            string        `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase       string        `yaml:"mongo_database" env:"MONGO_DATABASE"`
	MongoConnectTimeout time.Duration `yaml:"mongo_connect_timeout" env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s" validate:"min=0"`
	MongoMaxPoolSize    uint64        `yaml:"mongo_max_pool_size" env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`

	ListenAddr          string        `yaml:"listen_addr" env:"LISTEN_ADDR" envDefault:"localhost:3000" validate:"hostname_port"`
	GraphQLPath         string        `yaml:"graphql_path" env:"GRAPHQL_PATH" envDefault:"/api/graphql" validate:"startswith=/"`
	CORSAllowedOrigins  []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredential bool          `yaml:"cors_allow_credentials" env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSAllowedHeaders  []string      `yaml:"cors_allowed_headers" env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,X-Request-Id"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"10s" validate:"min=0"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" envDefault:"1048576" validate:"min=0"`
	PrettyJSON          bool          `yaml:"pretty_json" env:"PRETTY_JSON"`

	JWTSecret  string `yaml:"jwt_secret" env:"JWT_SECRET"`
	AuthCookie string `yaml:"auth_cookie" env:"AUTH_COOKIE" envDefault:"token"`
	TrustProxy bool   `yaml:"trust_proxy" env:"TRUST_PROXY" envDefault:"true"`
	// RedactErrors defaults to on in production.
	RedactErrors *bool `yaml:"redact_errors" env:"REDACT_ERRORS"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY"`

	ModelsFile          string `yaml:"models_file" env:"MODELS_FILE" envDefault:"models.yaml"`
	ModelsDescriptorSet string `yaml:"models_descriptor_set" env:"MODELS_DESCRIPTOR_SET"`
	SeedDemoData        bool   `yaml:"seed_demo_data" env:"SEED_DEMO_DATA"`

	OTELEndpoint    string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	OTELExporter    string `yaml:"otel_exporter" env:"OTEL_EXPORTER" envDefault:"grpc" validate:"oneof=grpc http"`
	OTELServiceName string `yaml:"otel_service_name" env:"OTEL_SERVICE_NAME" envDefault:"stitchgate"`

	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `yaml:"metrics_path" env:"METRICS_PATH" envDefault:"/metrics" validate:"startswith=/"`

	HealthGRPCAddr string `yaml:"health_grpc_addr" env:"HEALTH_GRPC_ADDR" validate:"omitempty,hostname_port"`
}

// IsProduction reports whether the gateway runs in production. Introspection
// and the explorer are disabled there.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// Redact reports whether resolver errors are hidden from clients.
func (c *Config) Redact() bool {
	if c.RedactErrors != nil {
		return *c.RedactErrors
	}
	return c.IsProduction()
}

// Load reads .env.local and .env (without overriding the environment),
// parses the environment, and applies the YAML file at path on top. An empty
// path falls back to CONFIG_PATH; a missing default file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: could not read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if c.MongoURI == "" {
		return nil, ErrMissingMongoURI
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}
