package otel

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
	reqid "github.com/hanpama/stitchgate/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "stitchgate"

// Exporter selects the OTLP transport.
type Exporter string

const (
	ExporterGRPC Exporter = "grpc"
	ExporterHTTP Exporter = "http"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, endpoint string, exporter Exporter, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch exporter {
	case ExporterHTTP:
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	case ExporterGRPC, "":
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	default:
		return nil, fmt.Errorf("otel: unknown exporter %q", exporter)
	}
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(tp.Tracer(tracerName))

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register turns gateway events into spans on tracer. HTTP and GraphQL spans
// are keyed by request ID; store operations become children of the
// operation span of their request.
func Register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, rid string) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid := e.RequestID
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("request.id", rid),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			v, ok := s.httpSpans.LoadAndDelete(e.RequestID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.gqlSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.RequestRejected) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.httpSpans.Load(rid); ok {
				span := v.(trace.Span)
				span.SetAttributes(attribute.String("graphql.rejection_code", e.Code))
				if e.Err != nil {
					span.RecordError(e.Err)
				}
			}
		}),

		// Store operations run concurrently within a request, so the span is
		// recorded once the operation finished.
		eventbus.Subscribe(func(ctx context.Context, e events.StoreOpFinish) {
			rid, _ := reqid.FromContext(ctx)
			end := time.Now()
			_, span := s.tracer.Start(s.parent(ctx, rid), "store."+e.Op,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithTimestamp(end.Add(-e.Duration)),
			)
			span.SetAttributes(
				semconv.DBSystemMongoDB,
				attribute.String("db.collection", e.Collection),
				attribute.String("db.operation", e.Op),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(end))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
