package schema

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/stitchgate/internal/language"
)

// BuildFromSDL parses and validates a single SDL document.
func BuildFromSDL(sdl string) (*Schema, error) {
	return BuildFromSources(language.NewSource("schema.graphql", sdl))
}

// BuildFromSources parses and validates SDL sources as one document and
// converts the result into a Schema. Extensions are merged into their base
// definitions; introspection types and built-in directives other than
// @include and @skip are left out.
func BuildFromSources(sources ...*language.Source) (*Schema, error) {
	resolved, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return fromResolved(resolved), nil
}

func fromResolved(rs *language.ResolvedSchema) *Schema {
	s := NewSchema(rs.Description)
	if rs.Query != nil {
		s.SetQueryType(rs.Query.Name)
	}
	if rs.Mutation != nil {
		s.SetMutationType(rs.Mutation.Name)
	}
	if rs.Subscription != nil {
		s.SetSubscriptionType(rs.Subscription.Name)
	}

	for name, def := range rs.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		if _, builtin := s.Types[name]; builtin && def.BuiltIn {
			continue
		}
		s.AddType(buildDefinition(rs, def))
	}

	for name, d := range rs.Directives {
		if _, builtin := s.Directives[name]; builtin {
			continue
		}
		if d.Position != nil && d.Position.Src != nil && d.Position.Src.BuiltIn {
			continue
		}
		s.AddDirective(buildDirective(d))
	}
	return s
}

func buildDefinition(rs *ast.Schema, def *ast.Definition) *Type {
	switch def.Kind {
	case ast.Object:
		t := NewType(def.Name, TypeKindObject, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		addFields(t, def.Fields)
		return t
	case ast.Interface:
		t := NewType(def.Name, TypeKindInterface, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		addFields(t, def.Fields)
		for _, name := range possibleTypeNames(rs, def) {
			t.AddPossibleType(name)
		}
		return t
	case ast.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t
	case ast.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, ev := range def.EnumValues {
			v := &EnumValue{Name: ev.Name, Description: ev.Description}
			v.IsDeprecated, v.DeprecationReason = deprecation(ev.Directives)
			t.AddEnumValue(v)
		}
		return t
	case ast.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description)
		for _, f := range def.Fields {
			iv := NewInputValue(f.Name, f.Description, typeRefFromAST(f.Type))
			iv.DefaultValue = constValue(f.DefaultValue)
			iv.IsDeprecated, iv.DeprecationReason = deprecation(f.Directives)
			t.AddInputField(iv)
		}
		t.OneOf = def.Directives.ForName("oneOf") != nil
		return t
	default:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				url := arg.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
		return t
	}
}

func addFields(t *Type, fields ast.FieldList) {
	for _, fd := range fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		f := NewField(fd.Name, fd.Description, typeRefFromAST(fd.Type))
		for _, a := range fd.Arguments {
			iv := NewInputValue(a.Name, a.Description, typeRefFromAST(a.Type))
			iv.DefaultValue = constValue(a.DefaultValue)
			iv.IsDeprecated, iv.DeprecationReason = deprecation(a.Directives)
			f.AddArgument(iv)
		}
		f.IsDeprecated, f.DeprecationReason = deprecation(fd.Directives)
		t.AddField(f)
	}
}

func possibleTypeNames(rs *ast.Schema, def *ast.Definition) []string {
	var names []string
	for _, pt := range rs.GetPossibleTypes(def) {
		names = append(names, pt.Name)
	}
	sort.Strings(names)
	return names
}

func buildDirective(d *ast.DirectiveDefinition) *Directive {
	out := &Directive{Name: d.Name, Description: d.Description, IsRepeatable: d.IsRepeatable}
	for _, loc := range d.Locations {
		out.Locations = append(out.Locations, string(loc))
	}
	for _, a := range d.Arguments {
		iv := NewInputValue(a.Name, a.Description, typeRefFromAST(a.Type))
		iv.DefaultValue = constValue(a.DefaultValue)
		out.Arguments = append(out.Arguments, iv)
	}
	return out
}

func deprecation(dirs ast.DirectiveList) (bool, string) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return false, ""
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return true, arg.Value.Raw
	}
	return true, "No longer supported"
}

func constValue(v *ast.Value) any {
	if v == nil {
		return nil
	}
	out, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return out
}

func typeRefFromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var inner *TypeRef
	if t.Elem != nil {
		inner = ListType(typeRefFromAST(t.Elem))
	} else {
		inner = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(inner)
	}
	return inner
}
