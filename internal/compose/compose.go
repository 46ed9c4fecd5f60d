// Package compose merges independently built executable schemas into the
// single schema served by the gateway.
//
// Root operation types are merged into Query, Mutation and Subscription
// whatever each source calls them; root fields are unioned and may be
// contributed by one source only. Other types may appear in several sources
// only with an identical shape. Every collision is reported, and a schema with
// any collision is never built.
package compose

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	executor "github.com/hanpama/stitchgate/internal/executor"
	resolver "github.com/hanpama/stitchgate/internal/resolver"
	schema "github.com/hanpama/stitchgate/internal/schema"
)

// SourceKind is the closed set of schema source variants.
type SourceKind int

const (
	// KindGenerated is a schema compiled from declarative models.
	KindGenerated SourceKind = iota + 1
	// KindHandwritten is a schema written as SDL with resolver functions.
	KindHandwritten
)

func (k SourceKind) String() string {
	switch k {
	case KindGenerated:
		return "generated"
	case KindHandwritten:
		return "handwritten"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ExecutableSchema is a named type system together with the runtime that
// resolves it. It is built once and not modified afterwards.
type ExecutableSchema struct {
	Name    string
	Kind    SourceKind
	Schema  *schema.Schema
	Runtime executor.Runtime
}

// NewExecutableSchema binds resolvers to sch. It fails when a binding names
// a field sch does not declare, or when sch has no query root.
func NewExecutableSchema(name string, kind SourceKind, sch *schema.Schema, bindings *resolver.Map) (*ExecutableSchema, error) {
	if name == "" {
		return nil, fmt.Errorf("compose: executable schema needs a name")
	}
	if kind != KindGenerated && kind != KindHandwritten {
		return nil, fmt.Errorf("compose: %s: unknown source kind %s", name, kind)
	}
	if sch == nil || sch.GetQueryType() == nil {
		return nil, fmt.Errorf("compose: %s: schema has no query root", name)
	}
	rt, err := bindings.Bind(sch)
	if err != nil {
		return nil, fmt.Errorf("compose: %s: %w", name, err)
	}
	return &ExecutableSchema{Name: name, Kind: kind, Schema: sch, Runtime: rt}, nil
}

// ComposedSchema is the union of the sources, shared read-only by requests.
type ComposedSchema struct {
	Schema  *schema.Schema
	Runtime executor.Runtime
	Sources []*ExecutableSchema

	routes *router
}

// SDL renders the composed schema.
func (c *ComposedSchema) SDL() string { return schema.Render(c.Schema) }

// Owner returns the name of the source resolving typeName.field.
func (c *ComposedSchema) Owner(typeName, field string) (string, bool) {
	i, ok := c.routes.owner(typeName, field)
	if !ok {
		return "", false
	}
	return c.Sources[i].Name, true
}

var composedRoots = [...]string{"Query", "Mutation", "Subscription"}

func sourceRoots(sch *schema.Schema) [3]string {
	return [3]string{sch.QueryType, sch.MutationType, sch.SubscriptionType}
}

// Compose merges two or more executable schemas.
func Compose(sources ...*ExecutableSchema) (*ComposedSchema, error) {
	if len(sources) < 2 {
		return nil, ErrTooFewSources
	}
	names := lo.Map(sources, func(s *ExecutableSchema, _ int) string { return s.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, fmt.Errorf("compose: duplicate source names %v", dup)
	}

	out := schema.NewSchema("")
	r := newRouter(sources)
	declaredBy := map[string]int{}
	var errs *multierror.Error

	for si, src := range sources {
		roots := sourceRoots(src.Schema)
		rename := map[string]string{}
		for ri, name := range roots {
			if name != "" && name != composedRoots[ri] {
				rename[name] = composedRoots[ri]
			}
		}
		r.rootNames[si] = lo.Invert(rename)

		for ri, name := range roots {
			if name == "" {
				continue
			}
			errs = multierror.Append(errs, mergeRoot(out, r, sources, si, composedRoots[ri], src.Schema.Types[name], rename))
		}

		for _, name := range src.Schema.TypeNames() {
			t := src.Schema.Types[name]
			if schema.IsBuiltin(t) || lo.Contains(roots[:], name) {
				continue
			}
			if lo.Contains(composedRoots[:], name) {
				errs = multierror.Append(errs, &SchemaConflictError{
					Type:    name,
					Sources: []string{src.Name},
					Reason:  "type name is reserved for a composed root",
				})
				continue
			}
			t = renameRefs(t, rename)
			prev, seen := out.Types[name]
			if !seen {
				out.AddType(t)
				declaredBy[name] = si
				r.types[name] = si
				continue
			}
			if m := diffTypes(prev, t); m != nil {
				errs = multierror.Append(errs, &SchemaConflictError{
					Type:    name,
					Field:   m.field,
					Sources: []string{sources[declaredBy[name]].Name, src.Name},
					Reason:  m.reason,
				})
			}
		}

		for _, name := range lo.Keys(src.Schema.Directives) {
			d := src.Schema.Directives[name]
			if schema.IsBuiltinDirective(d) {
				continue
			}
			if prev, ok := out.Directives[name]; ok && !sameDirective(prev, d) {
				errs = multierror.Append(errs, &SchemaConflictError{
					Type:    "@" + name,
					Sources: []string{src.Name},
					Reason:  "directive declared differently by another source",
				})
				continue
			}
			out.AddDirective(d)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &ComposedSchema{
		Schema:  out,
		Runtime: r,
		Sources: append([]*ExecutableSchema(nil), sources...),
		routes:  r,
	}, nil
}

// mergeRoot appends the fields of one source root to the composed root named
// composed, creating it on first use.
func mergeRoot(out *schema.Schema, r *router, sources []*ExecutableSchema, si int, composed string, root *schema.Type, rename map[string]string) error {
	if root == nil {
		return nil
	}
	target := out.Types[composed]
	if target == nil {
		target = schema.NewType(composed, schema.TypeKindObject, root.Description)
		out.AddType(target)
		switch composed {
		case "Query":
			out.SetQueryType(composed)
		case "Mutation":
			out.SetMutationType(composed)
		case "Subscription":
			out.SetSubscriptionType(composed)
		}
	}
	var errs *multierror.Error
	for _, f := range root.Fields {
		if owner, taken := r.fields[route(composed, f.Name)]; taken {
			errs = multierror.Append(errs, &SchemaConflictError{
				Type:    composed,
				Field:   f.Name,
				Sources: []string{sources[owner].Name, sources[si].Name},
				Reason:  "root field contributed by more than one source",
			})
			continue
		}
		r.fields[route(composed, f.Name)] = si
		target.AddField(renameField(f, rename))
	}
	return errs.ErrorOrNil()
}

// renameRefs returns t with references to renamed roots rewritten. t itself
// is returned when nothing refers to a renamed root.
func renameRefs(t *schema.Type, rename map[string]string) *schema.Type {
	if len(rename) == 0 {
		return t
	}
	touched := false
	fields := lo.Map(t.Fields, func(f *schema.Field, _ int) *schema.Field {
		nf := renameField(f, rename)
		touched = touched || nf != f
		return nf
	})
	if !touched {
		return t
	}
	cp := *t
	cp.Fields = fields
	return &cp
}

func renameField(f *schema.Field, rename map[string]string) *schema.Field {
	to, ok := rename[f.Type.GetNamedType()]
	if !ok {
		return f
	}
	cp := *f
	cp.Type = renameTypeRef(f.Type, to)
	return &cp
}

func renameTypeRef(t *schema.TypeRef, to string) *schema.TypeRef {
	if t.Kind == schema.TypeRefKindNamed {
		return schema.NamedType(to)
	}
	return &schema.TypeRef{Kind: t.Kind, OfType: renameTypeRef(t.OfType, to)}
}
