// Package health serves liveness and readiness over HTTP and, optionally,
// the standard gRPC health service.
package health

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a dependency can serve traffic.
type Probe func(ctx context.Context) error

// Checker defines an interface that must be implemented by a health checker to
// determine if the gateway can currently accept traffic.
type Checker interface {
	// Liveness returns a handler that returns 200 OK if the server is alive (running).
	Liveness() http.HandlerFunc

	// Readiness returns a handler that returns 200 OK if the server is ready to accept traffic
	// and 503 Service Unavailable if the server is not ready to serve traffic.
	Readiness() http.HandlerFunc

	// SetReady should be set to true once the server accepts traffic.
	SetReady(isReady bool)
}

var _ Checker = (*Checks)(nil)

type Checks struct {
	options *Options
	isReady atomic.Bool
	grpc    *grpchealth.Server
}

type Options struct {
	Logger *zap.Logger
	// Probe is consulted by Readiness after the ready flag. Optional.
	Probe Probe
	// ProbeTimeout bounds a Probe call; defaults to 2s.
	ProbeTimeout time.Duration
}

func New(opts *Options) *Checks {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	c := &Checks{options: opts, grpc: grpchealth.NewServer()}
	c.grpc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return c
}

// Liveness returns a handler that returns 200 OK if the server is alive (running).
func (c *Checks) Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w)
	}
}

// Readiness returns 200 OK once SetReady(true) was called and the probe, if
// any, passes; 503 otherwise.
func (c *Checks) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.isReady.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if c.options.Probe != nil {
			ctx, cancel := context.WithTimeout(r.Context(), c.options.ProbeTimeout)
			defer cancel()
			if err := c.options.Probe(ctx); err != nil {
				c.options.Logger.Warn("Readiness probe failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		writeOK(w)
	}
}

// SetReady sets the readiness state and mirrors it on the gRPC health service.
func (c *Checks) SetReady(isReady bool) {
	c.isReady.Store(isReady)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if isReady {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.grpc.SetServingStatus("", status)
}

// Shutdown marks every gRPC health status NOT_SERVING.
func (c *Checks) Shutdown() {
	c.isReady.Store(false)
	c.grpc.Shutdown()
}

// Register adds the grpc.health.v1.Health service to s.
func (c *Checks) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.grpc)
}

// ServeGRPC serves the health service on lis until ctx is done.
func (c *Checks) ServeGRPC(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	c.Register(s)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	if err := s.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
