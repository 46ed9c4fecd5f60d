// Package metrics exports gateway events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
)

const namespace = "stitchgate"

// Metrics holds the gateway collectors.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Operations       *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	StoreDuration    *prometheus.HistogramVec
	DependencyStatus *prometheus.GaugeVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by the GraphQL handler.",
		}, []string{"method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "operations_total",
			Help:      "GraphQL operations executed.",
		}, []string{"type"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "errors_total",
			Help:      "GraphQL errors returned to clients.",
		}, []string{"type"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "rejected_requests_total",
			Help:      "Requests refused before execution, by error code.",
		}, []string{"code"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Document store operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "op", "outcome"}),
		DependencyStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "up",
			Help:      "1 if the last readiness check of the dependency succeeded.",
		}, []string{"dependency"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.Operations, m.OperationErrors, m.Rejections,
		m.StoreDuration, m.DependencyStatus,
	)
	return m
}

// Subscribe attaches the collectors to the global event bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.HTTPRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.HTTPDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			m.Operations.WithLabelValues(opType(e.OperationType)).Inc()
			if len(e.Errors) > 0 {
				m.OperationErrors.WithLabelValues(opType(e.OperationType)).Add(float64(len(e.Errors)))
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.RequestRejected) {
			m.Rejections.WithLabelValues(e.Code).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.StoreOpFinish) {
			m.StoreDuration.WithLabelValues(e.Collection, e.Op, outcome(e.Err)).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.DependencyCheck) {
			up := 1.0
			if e.Err != nil {
				up = 0
			}
			m.DependencyStatus.WithLabelValues(e.Dependency).Set(up)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry, log *zap.Logger) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          zap.NewStdLog(log),
		Registry:          reg,
		Timeout:           10 * time.Second,
	})
}

func opType(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
