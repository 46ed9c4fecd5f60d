package introspection

import (
	language "github.com/hanpama/stitchgate/internal/language"
)

// Requested reports whether the operation selected by operationName reads
// __schema or __type at its root. __typename is not introspection.
//
// An ambiguous or missing operation reports false; the executor rejects it.
func Requested(doc *language.QueryDocument, operationName string) bool {
	op := selectOperation(doc, operationName)
	if op == nil {
		return false
	}
	return selectsMeta(doc, op.SelectionSet, map[string]bool{})
}

func selectOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if name != "" {
		return doc.Operations.ForName(name)
	}
	if len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	return nil
}

func selectsMeta(doc *language.QueryDocument, set language.SelectionSet, seen map[string]bool) bool {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if s.Name == "__schema" || s.Name == "__type" {
				return true
			}
		case *language.InlineFragment:
			if selectsMeta(doc, s.SelectionSet, seen) {
				return true
			}
		case *language.FragmentSpread:
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			if def := doc.Fragments.ForName(s.Name); def != nil && selectsMeta(doc, def.SelectionSet, seen) {
				return true
			}
		}
	}
	return false
}
