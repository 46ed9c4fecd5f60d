package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"

	language "github.com/hanpama/stitchgate/internal/language"
)

// ignoreCause drops the wrapped cause from GraphQLError comparisons.
var ignoreCause = cmpopts.IgnoreFields(GraphQLError{}, "Err")

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}
