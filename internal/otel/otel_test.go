package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
	reqid "github.com/hanpama/stitchgate/internal/reqid"
)

func TestRegister_SpansFromEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := Register(tp.Tracer(tracerName))
	defer unsubscribe()

	ctx, _ := reqid.WithID(context.Background(), "req-1")
	req := httptest.NewRequest("POST", "/api/graphql", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req, RequestID: "req-1"})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Restaurants", OperationType: "query"})
	eventbus.Publish(ctx, events.StoreOpFinish{Collection: "restaurants", Op: "find", Err: errors.New("timeout"), Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Restaurants", OperationType: "query"})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, RequestID: "req-1", Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 3)
	storeSpan, op, httpSpan := ended[0], ended[1], ended[2]

	require.Equal(t, "store.find", storeSpan.Name())
	require.Equal(t, op.SpanContext().SpanID(), storeSpan.Parent().SpanID())
	require.Len(t, storeSpan.Events(), 1) // recorded error

	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, httpSpan.SpanContext().SpanID(), op.Parent().SpanID())

	require.Equal(t, "http.request", httpSpan.Name())
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", ExporterGRPC, "stitchgate")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Setup(context.Background(), "localhost:4317", "kafka", "stitchgate")
	require.Error(t, err)
}
