// Package gateway assembles the HTTP router around the GraphQL handler and
// runs it, together with the optional gRPC health service, until shut down.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	compose "github.com/hanpama/stitchgate/internal/compose"
	config "github.com/hanpama/stitchgate/internal/config"
	health "github.com/hanpama/stitchgate/internal/health"
	metrics "github.com/hanpama/stitchgate/internal/metrics"
	reqctx "github.com/hanpama/stitchgate/internal/reqctx"
	server "github.com/hanpama/stitchgate/internal/server"
)

const shutdownGrace = 10 * time.Second

type Options struct {
	Logger *zap.Logger
	// Dependency gates every GraphQL request and the readiness probe.
	Dependency server.Dependency
	// Listener replaces binding cfg.ListenAddr.
	Listener net.Listener
	// Registry receives the gateway metrics; a fresh one is used when nil.
	Registry *prometheus.Registry
}

type Option func(*Options)

func WithLogger(l *zap.Logger) Option            { return func(o *Options) { o.Logger = l } }
func WithDependency(d server.Dependency) Option  { return func(o *Options) { o.Dependency = d } }
func WithListener(l net.Listener) Option         { return func(o *Options) { o.Listener = l } }
func WithRegistry(r *prometheus.Registry) Option { return func(o *Options) { o.Registry = r } }

// Handle is a running gateway.
type Handle struct {
	srv    *http.Server
	lis    net.Listener
	checks *health.Checks
	group  *errgroup.Group
	cancel context.CancelFunc
	unsub  func()
	log    *zap.Logger

	closing atomic.Bool
}

// Start binds the listeners and serves composed according to cfg. The
// gateway stops when ctx is cancelled or Shutdown is called.
func Start(ctx context.Context, composed *compose.ComposedSchema, cfg *config.Config, opts ...Option) (*Handle, error) {
	if composed == nil {
		return nil, errors.New("gateway: composed schema is required")
	}
	op := Options{}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	log := op.Logger

	// Introspection and the explorer follow the environment, decided once.
	explore := !cfg.IsProduction()

	builder := reqctx.NewBuilder(
		reqctx.WithSecret(cfg.JWTSecret),
		reqctx.WithCookie(cfg.AuthCookie),
		reqctx.WithTrustProxy(cfg.TrustProxy),
	)
	sopts := []server.Option{
		server.WithTimeout(cfg.RequestTimeout),
		server.WithPretty(cfg.PrettyJSON),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithCORS(server.CORSOptions{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedHeaders:   cfg.CORSAllowedHeaders,
			AllowCredentials: cfg.CORSAllowCredential,
		}),
		server.WithGraphiQL(explore),
		server.WithIntrospection(explore),
		server.WithRedaction(cfg.Redact()),
		server.WithContextBuilder(builder),
		server.WithLogger(log),
	}
	hopts := &health.Options{Logger: log}
	if op.Dependency != nil {
		sopts = append(sopts, server.WithDependency(op.Dependency))
		hopts.Probe = op.Dependency.Ready
	}
	gql, err := server.New(composed.Runtime, composed.Schema, sopts...)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	checks := health.New(hopts)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health/live", checks.Liveness())
	r.Get("/health/ready", checks.Readiness())

	unsub := func() {}
	if cfg.MetricsEnabled {
		reg := op.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		unsub = metrics.New(reg).Subscribe()
		r.Handle(cfg.MetricsPath, metrics.Handler(reg, log))
	}
	r.Handle(cfg.GraphQLPath, gql)

	handler := otelhttp.NewHandler(r, "stitchgate",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return !strings.HasPrefix(req.URL.Path, "/health/")
		}),
	)

	lis := op.Listener
	if lis == nil {
		lis, err = net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			unsub()
			return nil, fmt.Errorf("gateway: listen %s: %w", cfg.ListenAddr, err)
		}
	}
	var grpcLis net.Listener
	if cfg.HealthGRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.HealthGRPCAddr)
		if err != nil {
			unsub()
			_ = lis.Close()
			return nil, fmt.Errorf("gateway: listen %s: %w", cfg.HealthGRPCAddr, err)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log),
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)
	h := &Handle{srv: srv, lis: lis, checks: checks, group: group, cancel: cancel, unsub: unsub, log: log}

	group.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		if h.closing.Load() {
			return nil
		}
		checks.Shutdown()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer scancel()
		return srv.Shutdown(sctx)
	})
	if grpcLis != nil {
		group.Go(func() error { return checks.ServeGRPC(gctx, grpcLis) })
	}

	checks.SetReady(true)
	log.Info("GraphQL gateway listening",
		zap.String("addr", lis.Addr().String()),
		zap.String("path", cfg.GraphQLPath),
		zap.String("environment", cfg.Environment),
		zap.Bool("introspection", explore),
		zap.Strings("sources", sourceNames(composed)),
	)
	return h, nil
}

// Addr is the address the GraphQL endpoint listens on.
func (h *Handle) Addr() string { return h.lis.Addr().String() }

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.closing.Store(true)
	h.checks.Shutdown()
	err := h.srv.Shutdown(ctx)
	h.cancel()
	h.unsub()
	return err
}

// Wait blocks until the gateway stopped and returns the first serve error.
func (h *Handle) Wait() error {
	err := h.group.Wait()
	h.log.Info("GraphQL gateway stopped")
	return err
}

func sourceNames(c *compose.ComposedSchema) []string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name + " (" + s.Kind.String() + ")"
	}
	return names
}
