package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Error is a located GraphQL error as produced by the parser and validator.
type Error = gqlerror.Error

// ErrorList is a list of located GraphQL errors.
type ErrorList = gqlerror.List

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources into a resolved schema,
// including the built-in scalars and directives.
func LoadSchema(sources ...*Source) (*ResolvedSchema, error) {
	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewSource wraps SDL text with a name used in error locations.
func NewSource(name, input string) *Source {
	return &ast.Source{Name: name, Input: input}
}
