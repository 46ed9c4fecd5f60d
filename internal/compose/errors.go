package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrTooFewSources is returned when Compose receives fewer than two sources.
var ErrTooFewSources = errors.New("compose: at least two executable schemas are required")

// SchemaConflictError reports two or more sources declaring the same type (or
// root field) with incompatible shapes. Field is empty for type-level
// conflicts.
type SchemaConflictError struct {
	Type    string
	Field   string
	Sources []string
	Reason  string
}

func (e *SchemaConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema conflict on type %q", e.Type)
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	fmt.Fprintf(&b, " between sources %s", strings.Join(e.Sources, ", "))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Conflicts returns every SchemaConflictError contained in err.
func Conflicts(err error) []*SchemaConflictError {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*SchemaConflictError
		for _, e := range merr.Errors {
			out = append(out, Conflicts(e)...)
		}
		return out
	}
	var c *SchemaConflictError
	if errors.As(err, &c) {
		return []*SchemaConflictError{c}
	}
	return nil
}
