package schema

import "sort"

// NewSchema returns an empty schema with the built-in scalars and directives.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       make(map[string]*Type),
		Directives:  make(map[string]*Directive),
		Description: description,
	}
	s.AddType(stringType).
		AddType(intType).
		AddType(floatType).
		AddType(booleanType).
		AddType(idType)
	s.AddDirective(includeDirective).
		AddDirective(skipDirective)
	return s
}

func (s *Schema) SetQueryType(name string) *Schema        { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema     { s.MutationType = name; return s }
func (s *Schema) SetSubscriptionType(name string) *Schema { s.SubscriptionType = name; return s }

func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	if s.Directives == nil {
		s.Directives = make(map[string]*Directive)
	}
	s.Directives[d.Name] = d
	return s
}

// RootTypeNames returns the configured root operation type names in
// query, mutation, subscription order, skipping empty ones.
func (s *Schema) RootTypeNames() []string {
	var out []string
	for _, n := range []string{s.QueryType, s.MutationType, s.SubscriptionType} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// TypeNames returns all type names sorted lexicographically.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for n := range s.Types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsPossibleType reports whether the object type named objectType satisfies
// the type condition named cond.
func (s *Schema) IsPossibleType(cond, objectType string) bool {
	if cond == objectType {
		return true
	}
	t := s.Types[cond]
	if t == nil {
		return false
	}
	for _, pt := range t.PossibleTypes {
		if pt == objectType {
			return true
		}
	}
	return false
}

// IsBuiltin reports whether t is one of the shared built-in scalars.
func IsBuiltin(t *Type) bool {
	switch t {
	case stringType, intType, floatType, booleanType, idType:
		return true
	}
	return false
}

// IsBuiltinDirective reports whether d is one of the shared built-in directives.
func IsBuiltinDirective(d *Directive) bool {
	return d == includeDirective || d == skipDirective
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type           { t.Fields = append(t.Fields, f); return t }
func (t *Type) AddInterface(name string) *Type    { t.Interfaces = append(t.Interfaces, name); return t }
func (t *Type) AddPossibleType(name string) *Type { t.PossibleTypes = append(t.PossibleTypes, name); return t }
func (t *Type) AddEnumValue(v *EnumValue) *Type   { t.EnumValues = append(t.EnumValues, v); return t }
func (t *Type) AddInputField(v *InputValue) *Type { t.InputFields = append(t.InputFields, v); return t }

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InputField returns the input field with the given name, or nil.
func (t *Type) InputField(name string) *InputValue {
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Type) GetOrderedFields() []*Field           { return t.Fields }
func (t *Type) GetOrderedInputFields() []*InputValue { return t.InputFields }

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field { f.Async = async; return f }

func (f *Field) AddArgument(a *InputValue) *Field { f.Arguments = append(f.Arguments, a); return f }

func (f *Field) SetDeprecated(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func (f *Field) GetOrderedArguments() []*InputValue { return f.Arguments }

// NewFieldMap collects fields into the ordered slice stored on Type.Fields.
func NewFieldMap(fields ...*Field) []*Field { return fields }

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(value any) *InputValue { v.DefaultValue = value; return v }

// String renders the reference in SDL notation, e.g. "[String!]!".
func (t *TypeRef) String() string { return renderTypeRef(t) }

// Equal reports whether two references denote the same wrapped type.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Named != o.Named {
		return false
	}
	return t.OfType.Equal(o.OfType)
}
