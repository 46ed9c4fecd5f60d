// Package model compiles declarative model definitions into a GraphQL schema
// source backed by the document store.
//
// For a model named Restaurant with plural Restaurants the generated source
// declares:
//
//	type Restaurant { _id: ID! ...fields }
//	type RestaurantMultiOutput { results: [Restaurant!]! totalCount: Int! }
//	input CreateRestaurantDataInput { ...fields }
//	type Query {
//	  restaurant(_id: ID!): Restaurant
//	  restaurants(limit: Int = 10, offset: Int = 0): RestaurantMultiOutput!
//	}
//	type Mutation {
//	  createRestaurant(data: CreateRestaurantDataInput!): Restaurant
//	  deleteRestaurant(_id: ID!): Restaurant
//	}
//
// Models are read from YAML (LoadYAML) or from protobuf message descriptors
// (FromDescriptor, LoadDescriptorSet).
package model

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	store "github.com/hanpama/stitchgate/internal/store"
)

// FieldType is the scalar type of a model field.
type FieldType string

const (
	TypeString  FieldType = "String"
	TypeInt     FieldType = "Int"
	TypeFloat   FieldType = "Float"
	TypeBoolean FieldType = "Boolean"
	TypeID      FieldType = "ID"
	TypeDate    FieldType = "Date"
	TypeJSON    FieldType = "JSON"
)

// Field is one stored attribute of a model.
type Field struct {
	Name        string    `yaml:"name" validate:"required,graphql_name"`
	Type        FieldType `yaml:"type" validate:"required,oneof=String Int Float Boolean ID Date JSON"`
	List        bool      `yaml:"list"`
	Required    bool      `yaml:"required"`
	Description string    `yaml:"description"`
}

// Model describes one stored document type.
type Model struct {
	Name        string  `yaml:"name" validate:"required,graphql_name"`
	Plural      string  `yaml:"plural" validate:"omitempty,graphql_name"`
	Collection  string  `yaml:"collection"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields" validate:"required,min=1,dive"`
}

// PluralName returns Plural or Name with an "s" appended.
func (m Model) PluralName() string {
	if m.Plural != "" {
		return m.Plural
	}
	return m.Name + "s"
}

// CollectionName returns Collection or the lower-cased plural name.
func (m Model) CollectionName() string {
	if m.Collection != "" {
		return m.Collection
	}
	return strings.ToLower(m.PluralName())
}

func (m Model) singleField() string { return lowerFirst(m.Name) }
func (m Model) multiField() string  { return lowerFirst(m.PluralName()) }
func (m Model) multiType() string   { return m.Name + "MultiOutput" }
func (m Model) createType() string  { return "Create" + m.Name + "DataInput" }
func (m Model) createField() string { return "create" + m.Name }
func (m Model) deleteField() string { return "delete" + m.Name }

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var graphqlName = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("graphql_name", func(fl validator.FieldLevel) bool {
			return graphqlName.MatchString(fl.Field().String())
		})
	})
	return validate
}

var reservedTypeNames = []string{"Query", "Mutation", "Subscription", "Date", "JSON"}

// Validate checks every model and reports all problems at once.
func Validate(models []Model) error {
	var errs error
	if len(models) == 0 {
		return fmt.Errorf("model: no models defined")
	}
	for _, m := range models {
		if err := structValidator().Struct(m); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("model %q: %w", m.Name, err))
			continue
		}
		if strings.HasPrefix(m.Name, "__") || lo.Contains(reservedTypeNames, m.Name) {
			errs = multierror.Append(errs, fmt.Errorf("model %q: reserved type name", m.Name))
		}
		names := lo.Map(m.Fields, func(f Field, _ int) string { return f.Name })
		for _, dup := range lo.FindDuplicates(names) {
			errs = multierror.Append(errs, fmt.Errorf("model %q: duplicate field %q", m.Name, dup))
		}
		for _, n := range names {
			if n == store.IDField || strings.HasPrefix(n, "__") {
				errs = multierror.Append(errs, fmt.Errorf("model %q: field %q is reserved", m.Name, n))
			}
		}
	}

	typeNames := lo.FlatMap(models, func(m Model, _ int) []string {
		return []string{m.Name, m.multiType(), m.createType()}
	})
	for _, dup := range lo.FindDuplicates(typeNames) {
		errs = multierror.Append(errs, fmt.Errorf("model: type %q declared twice", dup))
	}
	rootFields := lo.FlatMap(models, func(m Model, _ int) []string {
		return []string{m.singleField(), m.multiField()}
	})
	for _, dup := range lo.FindDuplicates(rootFields) {
		errs = multierror.Append(errs, fmt.Errorf("model: query field %q generated twice", dup))
	}
	for _, dup := range lo.FindDuplicates(lo.Map(models, func(m Model, _ int) string { return m.CollectionName() })) {
		errs = multierror.Append(errs, fmt.Errorf("model: collection %q used twice", dup))
	}
	return errs
}
