package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/stitchgate/internal/executor"
	schema "github.com/hanpama/stitchgate/internal/schema"
)

// Wrapper pairs the introspection-aware runtime with the extended schema it
// must be executed against.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a runtime answering __schema/__type and the fields of the
// introspection types, delegating everything else to base. sch is not
// modified.
func Wrap(base executor.Runtime, sch *schema.Schema) *Wrapper {
	extended := extend(sch)
	return &Wrapper{
		Runtime: &runtime{base: base, schema: extended},
		Schema:  extended,
	}
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if strings.HasPrefix(objectType, "__") {
		return r.resolveMeta(source, field, args)
	}
	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) resolveMeta(source any, field string, args map[string]any) (any, error) {
	var (
		v  any
		ok bool
	)
	switch src := source.(type) {
	case *schema.Schema:
		v, ok = resolveSchemaField(src, field)
	case *schema.Type:
		v, ok = resolveTypeField(r.schema, src, field, args)
	case *schema.TypeRef:
		v, ok = resolveTypeRefField(r.schema, src, field, args)
	case *schema.Field:
		v, ok = resolveFieldField(src, field, args)
	case *schema.InputValue:
		v, ok = resolveInputValueField(src, field)
	case *schema.EnumValue:
		v, ok = resolveEnumValueField(src, field)
	case *schema.Directive:
		v, ok = resolveDirectiveField(src, field, args)
	}
	if !ok {
		return nil, fmt.Errorf("introspection: cannot resolve %s on %T", field, source)
	}
	return v, nil
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if strings.HasPrefix(typ, "__") {
		return fmt.Sprint(value), nil
	}
	switch v := value.(type) {
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

// --- field resolution per introspection type ---

func resolveSchemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		return sortedTypes(sch), true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		return sch.GetMutationType(), true
	case "subscriptionType":
		return sch.GetSubscriptionType(), true
	case "directives":
		return sortedDirectives(sch), true
	case "description":
		return optional(sch.Description), true
	}
	return nil, false
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optional(t.Description), true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return visibleFields(t, args), true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return lookupTypes(sch, t.Interfaces), true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		return lookupTypes(sch, t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		return filterDeprecated(t.EnumValues, args, func(v *schema.EnumValue) bool { return v.IsDeprecated }), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return filterDeprecated(t.GetOrderedInputFields(), args, func(v *schema.InputValue) bool { return v.IsDeprecated }), true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	case "ofType":
		// named types never wrap another type
		return nil, true
	}
	return nil, false
}

// resolveTypeRefField answers __Type fields for a field or argument type.
// Wrappers expose kind/ofType only; a named reference behaves like the
// definition it points to.
func resolveTypeRefField(sch *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	if tr.Kind == schema.TypeRefKindNonNull || tr.Kind == schema.TypeRefKindList {
		switch field {
		case "kind":
			return string(tr.Kind), true
		case "ofType":
			return tr.OfType, true
		}
		if _, known := resolveTypeField(sch, &schema.Type{}, field, args); known {
			return nil, true
		}
		return nil, false
	}
	def := sch.Types[tr.Named]
	if def == nil {
		return nil, false
	}
	return resolveTypeField(sch, def, field, args)
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optional(f.Description), true
	case "args":
		return filterDeprecated(f.GetOrderedArguments(), args, func(v *schema.InputValue) bool { return v.IsDeprecated }), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func resolveInputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return optional(a.Description), true
	case "type":
		return a.Type, true
	case "defaultValue":
		if a.DefaultValue == nil {
			return nil, true
		}
		return schema.ValueLiteral(a.DefaultValue), true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optional(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optional(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := append([]string(nil), d.Locations...)
		sort.Strings(locs)
		return locs, true
	case "args":
		return filterDeprecated(d.Arguments, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), true
	}
	return nil, false
}

// --- helpers ---

func sortedTypes(sch *schema.Schema) []*schema.Type {
	out := make([]*schema.Type, 0, len(sch.Types))
	for _, name := range sch.TypeNames() {
		out = append(out, sch.Types[name])
	}
	return out
}

func sortedDirectives(sch *schema.Schema) []*schema.Directive {
	out := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// visibleFields hides the __schema/__type meta fields added to the query root.
func visibleFields(t *schema.Type, args map[string]any) []*schema.Field {
	out := make([]*schema.Field, 0, len(t.Fields))
	for _, f := range filterDeprecated(t.GetOrderedFields(), args, func(f *schema.Field) bool { return f.IsDeprecated }) {
		if !strings.HasPrefix(f.Name, "__") {
			out = append(out, f)
		}
	}
	return out
}

func lookupTypes(sch *schema.Schema, names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// filterDeprecated keeps declaration order, dropping deprecated entries
// unless includeDeprecated is set.
func filterDeprecated[T any](items []T, args map[string]any, deprecated func(T) bool) []T {
	include, _ := args["includeDeprecated"].(bool)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if include || !deprecated(it) {
			out = append(out, it)
		}
	}
	return out
}

func deprecationReason(deprecated bool, reason string) *string {
	if !deprecated {
		return nil
	}
	return &reason
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
