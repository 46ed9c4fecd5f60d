// Package server is the HTTP endpoint of the gateway. A request passes the
// CORS policy, the dependency check and the context builder before its
// operations are executed against the composed schema.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	eventbus "github.com/hanpama/stitchgate/internal/eventbus"
	events "github.com/hanpama/stitchgate/internal/events"
	executor "github.com/hanpama/stitchgate/internal/executor"
	introspection "github.com/hanpama/stitchgate/internal/introspection"
	language "github.com/hanpama/stitchgate/internal/language"
	logging "github.com/hanpama/stitchgate/internal/logging"
	reqctx "github.com/hanpama/stitchgate/internal/reqctx"
	reqid "github.com/hanpama/stitchgate/internal/reqid"
	schema "github.com/hanpama/stitchgate/internal/schema"
)

// Dependency is a backing service that must be reachable before a request
// is executed.
type Dependency interface {
	Ready(ctx context.Context) error
}

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	exec    *executor.Executor
	opt     Options
	cors    *corsPolicy
	builder *reqctx.Builder
	log     *zap.Logger
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	CORS CORSOptions

	// GraphiQL serves the in-browser IDE on GET requests accepting HTML.
	GraphiQL bool

	// Introspection answers __schema and __type. When off, operations
	// selecting them are refused before execution.
	Introspection bool

	// Redact replaces resolver error messages with a generic one.
	Redact bool

	// Dependency is checked before every request. Optional.
	Dependency Dependency

	// ContextBuilder derives the request context; defaults to an anonymous
	// builder.
	ContextBuilder *reqctx.Builder

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option          { return func(o *Options) { o.Timeout = d } }
func WithPretty(on bool) Option                   { return func(o *Options) { o.Pretty = on } }
func WithMaxBodyBytes(n int64) Option             { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(c CORSOptions) Option               { return func(o *Options) { o.CORS = c } }
func WithGraphiQL(enable bool) Option             { return func(o *Options) { o.GraphiQL = enable } }
func WithIntrospection(enable bool) Option        { return func(o *Options) { o.Introspection = enable } }
func WithRedaction(on bool) Option                { return func(o *Options) { o.Redact = on } }
func WithDependency(d Dependency) Option          { return func(o *Options) { o.Dependency = d } }
func WithContextBuilder(b *reqctx.Builder) Option { return func(o *Options) { o.ContextBuilder = b } }
func WithLogger(l *zap.Logger) Option             { return func(o *Options) { o.Logger = l } }

// New creates a GraphQL HTTP handler for runtime and sch. Introspection and
// GraphiQL are on unless disabled.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	if runtime == nil || sch == nil {
		return nil, errors.New("server: runtime and schema are required")
	}
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, Introspection: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	if op.ContextBuilder == nil {
		op.ContextBuilder = reqctx.NewBuilder()
	}

	exec := executor.NewExecutor(runtime, sch)
	if op.Introspection {
		w := introspection.Wrap(runtime, sch)
		exec = executor.NewExecutor(w.Runtime, w.Schema)
	}
	return &Handler{
		exec:    exec,
		opt:     op,
		cors:    newCORSPolicy(op.CORS),
		builder: op.ContextBuilder,
		log:     op.Logger,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.FromRequest(ctx, r)
	r = r.WithContext(ctx)
	w.Header().Set(reqid.Header, rid)
	log := logging.ForContext(ctx, h.log)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, RequestID: rid, Status: status, Duration: time.Since(start)})
	}()

	reject := func(st int, code string, err error, message string) {
		status = st
		log.Warn("Request rejected", zap.String("code", code), zap.Int("status", st), zap.Error(err))
		eventbus.Publish(ctx, events.RequestRejected{Code: code, Status: st, Err: err})
		writeJSON(w, st, errorResponse(code, message), h.opt.Pretty)
	}

	if !h.cors.allowed(r) {
		reject(http.StatusForbidden, CodeCorsRejected, ErrCorsRejected, ErrCorsRejected.Error())
		return
	}
	h.cors.apply(w, r)
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		if !isPreflight(r) {
			w.WriteHeader(status)
		}
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		reject(http.StatusMethodNotAllowed, CodeMethodNotAllowed, nil, "method not allowed")
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		servePlayground(w, r.URL.Path)
		return
	}

	if h.opt.Dependency != nil {
		if err := h.opt.Dependency.Ready(ctx); err != nil {
			reject(http.StatusServiceUnavailable, CodeDependencyUnavailable, err, "Service temporarily unavailable")
			return
		}
	}

	rc, err := h.builder.Build(reqctx.FromHTTP(r))
	if err != nil {
		message := "invalid request"
		var ire *reqctx.InvalidRequestError
		if errors.As(err, &ire) {
			message = "invalid request: " + ire.Reason
		}
		reject(http.StatusBadRequest, CodeInvalidRequest, err, message)
		return
	}
	ctx = reqctx.NewContext(ctx, rc)

	req, batch, rerr := parseRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		reject(rerr.status, CodeBadRequest, nil, rerr.message)
		return
	}

	if batch != nil {
		out := make([]specResult, len(batch))
		for i := range batch {
			out[i], _ = h.executeOne(ctx, log, r.Method, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	res, st := h.executeOne(ctx, log, r.Method, req)
	status = st
	writeJSON(w, status, res, h.opt.Pretty)
}

// executeOne runs a single operation and returns its wire result with the
// HTTP status it calls for when sent on its own. Mutations are only
// accepted over POST.
func (h *Handler) executeOne(ctx context.Context, log *zap.Logger, method string, req GraphQLRequest) (specResult, int) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		log.Warn("GraphQL parse error", zap.Error(err))
		return parseErrorResponse(err), http.StatusOK
	}

	if !h.opt.Introspection && introspection.Requested(doc, req.OperationName) {
		log.Warn("Introspection query refused", zap.String("operation", req.OperationName))
		eventbus.Publish(ctx, events.RequestRejected{Code: CodeIntrospectionDisabled, Status: http.StatusBadRequest})
		return errorResponse(CodeIntrospectionDisabled, "GraphQL introspection is not allowed"), http.StatusBadRequest
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	opType := ""
	if opDef != nil {
		opType = string(opDef.Operation)
	}
	if method == http.MethodGet && opDef != nil && opDef.Operation == language.Mutation {
		log.Warn("Mutation over GET refused", zap.String("operation", req.OperationName))
		eventbus.Publish(ctx, events.RequestRejected{Code: CodeMethodNotAllowed, Status: http.StatusMethodNotAllowed})
		return errorResponse(CodeMethodNotAllowed, "mutations must be sent with POST"), http.StatusMethodNotAllowed
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Error("Request timed out", zap.Duration("elapsed", time.Since(start)))
		return errorResponse(CodeDependencyUnavailable, "request timed out"), http.StatusServiceUnavailable
	}
	return h.toSpecResult(log, result), http.StatusOK
}
