// Package reqid carries a per-request identifier on the context.
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the HTTP header a request ID is read from and echoed in.
const Header = "X-Request-Id"

// maxLen bounds client-supplied IDs so they cannot bloat logs.
const maxLen = 128

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	return WithID(parent, uuid.NewString())
}

// WithID stores id on parent.
func WithID(parent context.Context, id string) (context.Context, string) {
	return context.WithValue(parent, key{}, id), id
}

// FromRequest reuses a well-formed X-Request-Id of r, or generates one.
func FromRequest(parent context.Context, r *http.Request) (context.Context, string) {
	if id := r.Header.Get(Header); id != "" && len(id) <= maxLen && printable(id) {
		return WithID(parent, id)
	}
	return NewContext(parent)
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
