package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(h http.HandlerFunc) int {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Code
}

func TestChecks_HTTP(t *testing.T) {
	var probeErr error
	c := New(&Options{
		Logger: zaptest.NewLogger(t),
		Probe:  func(context.Context) error { return probeErr },
	})

	require.Equal(t, http.StatusOK, status(c.Liveness()))
	require.Equal(t, http.StatusServiceUnavailable, status(c.Readiness()))

	c.SetReady(true)
	require.Equal(t, http.StatusOK, status(c.Readiness()))

	probeErr = errors.New("mongodb unreachable")
	require.Equal(t, http.StatusServiceUnavailable, status(c.Readiness()))
}

func TestChecks_GRPC(t *testing.T) {
	c := New(&Options{})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.ServeGRPC(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.Status)

	c.SetReady(true)
	res, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, res.Status)
}
