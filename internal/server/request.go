package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// GraphQLRequest is one operation as posted by a client.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError is a transport-level failure to read a request.
type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

const errBodyTooLargeMessage = "body too large"

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *requestError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, badRequest("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, badRequest("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, badRequest("unsupported Content-Type")
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, badRequest("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: errBodyTooLargeMessage}
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, badRequest("invalid JSON")
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, badRequest("empty batch")
		}
		return GraphQLRequest{}, arr, nil
	}

	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, badRequest("missing 'query'")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") {
			return true
		}
	}
	return false
}
