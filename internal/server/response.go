package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	executor "github.com/hanpama/stitchgate/internal/executor"
	language "github.com/hanpama/stitchgate/internal/language"
	store "github.com/hanpama/stitchgate/internal/store"
)

// Error codes placed in extensions.code.
const (
	CodeCorsRejected          = "CORS_REJECTED"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeIntrospectionDisabled = "INTROSPECTION_DISABLED"
	CodeInternal              = "INTERNAL_SERVER_ERROR"
	CodeParseFailed           = "GRAPHQL_PARSE_FAILED"
	CodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	CodeBadRequest            = "BAD_REQUEST"
)

const redactedMessage = "Internal server error"

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(code, message string) specResult {
	return specResult{Errors: []specError{{Message: message, Extensions: map[string]any{"code": code}}}}
}

func parseErrorResponse(err error) specResult {
	var ge *language.Error
	if !errors.As(err, &ge) {
		return errorResponse(CodeParseFailed, err.Error())
	}
	se := specError{Message: ge.Message, Extensions: map[string]any{"code": CodeParseFailed}}
	for _, l := range ge.Locations {
		se.Locations = append(se.Locations, specLocation{Line: l.Line, Column: l.Column})
	}
	return specResult{Errors: []specError{se}}
}

// toSpecResult converts an execution result for the wire. Every error is
// logged; resolver failures get a code, are redacted when configured, and
// carry a stack trace while introspection is enabled.
func (h *Handler) toSpecResult(log *zap.Logger, res *executor.ExecutionResult) specResult {
	out := specResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]specError, len(res.Errors))
	for i, e := range res.Errors {
		se := specError{Message: e.Message, Extensions: copyExtensions(e.Extensions)}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				switch v := pe.(type) {
				case string, int:
					se.Path[j] = v
				default:
					se.Path[j] = fmt.Sprint(v)
				}
			}
		}

		var re *executor.ResolverError
		if errors.As(e.Err, &re) {
			code := CodeInternal
			if store.IsUnavailable(re) {
				code = CodeDependencyUnavailable
			}
			log.Error("GraphQL resolver error",
				zap.String("field", re.ObjectType+"."+re.Field),
				zap.Any("path", se.Path),
				zap.Error(re.Err),
			)
			if se.Extensions == nil {
				se.Extensions = map[string]any{}
			}
			se.Extensions["code"] = code
			if h.opt.Redact {
				se.Message = redactedMessage
			}
			if h.opt.Introspection {
				if st := stackTrace(re.Err); len(st) > 0 {
					se.Extensions["exception"] = map[string]any{"stacktrace": st}
				}
			}
		} else {
			log.Warn("GraphQL error", zap.String("message", e.Message), zap.Any("path", se.Path))
		}
		out.Errors[i] = se
	}
	return out
}

func copyExtensions(ext map[string]any) map[string]any {
	if len(ext) == 0 {
		return nil
	}
	out := make(map[string]any, len(ext))
	for k, v := range ext {
		out[k] = v
	}
	return out
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// stackTrace returns the frames of the innermost error in the chain that
// recorded one.
func stackTrace(err error) []string {
	var frames pkgerrors.StackTrace
	for ; err != nil; err = errors.Unwrap(err) {
		if st, ok := err.(stackTracer); ok {
			frames = st.StackTrace()
		}
	}
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = fmt.Sprintf("%n (%s:%d)", f, f, f)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
