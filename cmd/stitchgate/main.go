package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	compose "github.com/hanpama/stitchgate/internal/compose"
	config "github.com/hanpama/stitchgate/internal/config"
	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	gateway "github.com/hanpama/stitchgate/internal/gateway"
	logging "github.com/hanpama/stitchgate/internal/logging"
	model "github.com/hanpama/stitchgate/internal/model"
	otel "github.com/hanpama/stitchgate/internal/otel"
	restaurants "github.com/hanpama/stitchgate/internal/restaurants"
	seed "github.com/hanpama/stitchgate/internal/seed"
	store "github.com/hanpama/stitchgate/internal/store"
	memstore "github.com/hanpama/stitchgate/internal/store/memstore"
	mongostore "github.com/hanpama/stitchgate/internal/store/mongostore"
)

const rootUsage = `stitchgate: GraphQL gateway composing generated and handwritten schemas

USAGE:
  stitchgate <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL gateway backed by MongoDB
  compile-sdl      Compose the schema sources and print the resulting SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>   YAML configuration file (default: $CONFIG_PATH)

Settings are read from the environment (and .env.local / .env):
  MONGO_URI (required), APP_ENV, LISTEN_ADDR, GRAPHQL_PATH, MODELS_FILE,
  MODELS_DESCRIPTOR_SET, CORS_ALLOWED_ORIGINS, JWT_SECRET, LOG_LEVEL, ...
`

const compileSDLUsage = `compile-sdl FLAGS:
  -models <file>          Models YAML file (default: models.yaml)
  -descriptor-set <file>  Binary FileDescriptorSet to read models from instead
  -message <name>         Message to turn into a model. Repeatable; default all
  -out <file>             Write composed SDL to file (default: stdout)
  (Composition always runs; exits non-zero on conflicts)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("stitchgate", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs)
	case "compile-sdl":
		return cmdCompileSDL(cmdArgs, stdout)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "compile-sdl":
		fmt.Fprint(stdout, compileSDLUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// loadModels reads the declarative models from a descriptor set when one is
// given, otherwise from the YAML file.
func loadModels(yamlPath, descriptorSet string, messages []string) ([]model.Model, error) {
	if descriptorSet != "" {
		return model.LoadDescriptorSet(descriptorSet, messages...)
	}
	return model.LoadYAML(yamlPath)
}

// composeSources builds the generated and the handwritten source over st and
// composes them. Conflicts between the two are returned as is.
func composeSources(models []model.Model, st store.Store, log *zap.Logger) (*compose.ComposedSchema, error) {
	generated, err := model.Source(models, st)
	if err != nil {
		return nil, fmt.Errorf("generated schema: %w", err)
	}
	handwritten, err := restaurants.Source(st, log)
	if err != nil {
		return nil, fmt.Errorf("handwritten schema: %w", err)
	}
	return compose.Compose(generated, handwritten)
}

func cmdServe(ctx context.Context, args []string) error {
	configPath := ""
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", configPath, "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogPretty, !cfg.IsProduction(), logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()

	models, err := loadModels(cfg.ModelsFile, cfg.ModelsDescriptorSet, nil)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	eventbus.Use(eventbus.New())
	shutdownOtel, err := otel.Setup(ctx, cfg.OTELEndpoint, otel.Exporter(cfg.OTELExporter), cfg.OTELServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownOtel(context.Background()) }()

	mongo, err := mongostore.Open(cfg.MongoURI,
		mongostore.WithDatabase(cfg.MongoDatabase),
		mongostore.WithAppName(cfg.OTELServiceName),
		mongostore.WithConnectTimeout(cfg.MongoConnectTimeout),
		mongostore.WithMaxPoolSize(cfg.MongoMaxPoolSize),
	)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongo.Close(cctx); err != nil {
			logger.Warn("Could not disconnect from MongoDB", zap.Error(err))
		}
	}()
	st := store.Observe(mongo, mongostore.Dependency)

	composed, err := composeSources(models, st, logger)
	if err != nil {
		for _, c := range compose.Conflicts(err) {
			logger.Error("Schema conflict", zap.String("type", c.Type), zap.String("field", c.Field), zap.Strings("sources", c.Sources))
		}
		return err
	}

	if seed.Enabled(cfg) {
		if _, err := seed.Run(ctx, cfg, st, logger); err != nil {
			logger.Warn("Could not seed demo data", zap.Error(err))
		}
	}

	h, err := gateway.Start(ctx, composed, cfg, gateway.WithLogger(logger), gateway.WithDependency(st))
	if err != nil {
		return err
	}
	if err := h.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdCompileSDL(args []string, stdout io.Writer) error {
	modelsFile := "models.yaml"
	descriptorSet := ""
	outFile := ""
	var messages stringListFlag
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&modelsFile, "models", modelsFile, "Models YAML file")
	fs.StringVar(&descriptorSet, "descriptor-set", descriptorSet, "Binary FileDescriptorSet")
	fs.Var(&messages, "message", "Message to turn into a model")
	fs.StringVar(&outFile, "out", outFile, "Write composed SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileSDLUsage)
		return err
	}

	models, err := loadModels(modelsFile, descriptorSet, messages)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	// Composition needs no database; resolvers are never called.
	composed, err := composeSources(models, memstore.New(), zap.NewNop())
	if err != nil {
		return err
	}
	sdl := composed.SDL()
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
