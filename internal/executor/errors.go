package executor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ResolverError wraps a failure returned (or panicked) by a runtime while
// resolving ObjectType.Field.
type ResolverError struct {
	ObjectType string
	Field      string
	Err        error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("resolve %s.%s: %v", e.ObjectType, e.Field, e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }

func newResolverError(objectType, field string, err error) *ResolverError {
	return &ResolverError{ObjectType: objectType, Field: field, Err: err}
}

// recoveredError converts a recovered panic value into an error carrying
// the stack of the recovery site.
func recoveredError(v any) error {
	if err, ok := v.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Errorf("panic: %v", v)
}
