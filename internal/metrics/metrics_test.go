package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
)

func TestMetrics_FromEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	reg := prometheus.NewRegistry()
	m := New(reg)
	unsub := m.Subscribe()
	defer unsub()

	ctx := context.Background()
	req := httptest.NewRequest(http.MethodPost, "/api/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Errors: []error{errors.New("a"), errors.New("b")}})
	eventbus.Publish(ctx, events.RequestRejected{Code: "CORS_REJECTED", Status: 403})
	eventbus.Publish(ctx, events.StoreOpFinish{Collection: "restaurants", Op: "find", Duration: time.Millisecond})
	eventbus.Publish(ctx, events.DependencyCheck{Dependency: "mongodb", Err: errors.New("down")})

	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("query")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("query")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("CORS_REJECTED")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.DependencyStatus.WithLabelValues("mongodb")))
	require.Equal(t, 1, testutil.CollectAndCount(m.StoreDuration))

	rec := httptest.NewRecorder()
	Handler(reg, zaptest.NewLogger(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "stitchgate_graphql_rejected_requests_total"))
}
