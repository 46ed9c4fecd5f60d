package model

import (
	"fmt"

	schema "github.com/hanpama/stitchgate/internal/schema"
	store "github.com/hanpama/stitchgate/internal/store"
)

const (
	// DefaultLimit is the page size of multi queries without a limit argument.
	DefaultLimit = 10
	// MaxLimit caps the limit argument of multi queries.
	MaxLimit = 100
)

// BuildSchema declares the GraphQL types and root fields for models. The
// models must have passed Validate.
func BuildSchema(models []Model) *schema.Schema {
	sch := schema.NewSchema("").
		SetQueryType("Query").
		SetMutationType("Mutation")
	sch.AddType(schema.NewType(string(TypeDate), schema.TypeKindScalar, "RFC 3339 date-time."))
	sch.AddType(schema.NewType(string(TypeJSON), schema.TypeKindScalar, "Arbitrary JSON value."))

	query := schema.NewType("Query", schema.TypeKindObject, "")
	mutation := schema.NewType("Mutation", schema.TypeKindObject, "")

	for _, m := range models {
		obj := schema.NewType(m.Name, schema.TypeKindObject, m.Description)
		obj.AddField(schema.NewField(store.IDField, "", schema.NonNullType(schema.NamedType("ID"))))
		input := schema.NewType(m.createType(), schema.TypeKindInputObject, "")
		for _, f := range m.Fields {
			obj.AddField(schema.NewField(f.Name, f.Description, f.typeRef()))
			input.AddInputField(schema.NewInputValue(f.Name, f.Description, f.typeRef()))
		}

		multi := schema.NewType(m.multiType(), schema.TypeKindObject, "")
		multi.AddField(schema.NewField("results", "",
			schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType(m.Name))))))
		multi.AddField(schema.NewField("totalCount", "", schema.NonNullType(schema.NamedType("Int"))))

		sch.AddType(obj).AddType(input).AddType(multi)

		idArg := schema.NewInputValue(store.IDField, "", schema.NonNullType(schema.NamedType("ID")))
		query.AddField(schema.NewField(m.singleField(), fmt.Sprintf("Fetch one %s by _id.", m.Name), schema.NamedType(m.Name)).
			AddArgument(idArg))
		query.AddField(schema.NewField(m.multiField(), fmt.Sprintf("List %s.", m.PluralName()),
			schema.NonNullType(schema.NamedType(m.multiType()))).
			AddArgument(schema.NewInputValue("limit", "", schema.NamedType("Int")).SetDefault(DefaultLimit)).
			AddArgument(schema.NewInputValue("offset", "", schema.NamedType("Int")).SetDefault(0)))

		mutation.AddField(schema.NewField(m.createField(), "", schema.NamedType(m.Name)).
			AddArgument(schema.NewInputValue("data", "", schema.NonNullType(schema.NamedType(m.createType())))))
		mutation.AddField(schema.NewField(m.deleteField(), "", schema.NamedType(m.Name)).
			AddArgument(schema.NewInputValue(store.IDField, "", schema.NonNullType(schema.NamedType("ID")))))
	}

	sch.AddType(query).AddType(mutation)
	return sch
}

func (f Field) typeRef() *schema.TypeRef {
	t := schema.NamedType(string(f.Type))
	if f.List {
		t = schema.ListType(schema.NonNullType(t))
	}
	if f.Required {
		t = schema.NonNullType(t)
	}
	return t
}
