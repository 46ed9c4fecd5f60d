package compose

import (
	"fmt"
	"reflect"

	"github.com/samber/lo"

	schema "github.com/hanpama/stitchgate/internal/schema"
)

// mismatch describes the first difference found between two definitions of
// the same named type. Descriptions are not compared.
type mismatch struct {
	field  string
	reason string
}

func diffTypes(a, b *schema.Type) *mismatch {
	if a.Kind != b.Kind {
		return &mismatch{reason: fmt.Sprintf("kind %s vs %s", a.Kind, b.Kind)}
	}
	if m := diffFields(a.Fields, b.Fields); m != nil {
		return m
	}
	if !lo.ElementsMatch(a.Interfaces, b.Interfaces) {
		return &mismatch{reason: fmt.Sprintf("interfaces %v vs %v", a.Interfaces, b.Interfaces)}
	}
	if !lo.ElementsMatch(a.PossibleTypes, b.PossibleTypes) {
		return &mismatch{reason: fmt.Sprintf("possible types %v vs %v", a.PossibleTypes, b.PossibleTypes)}
	}
	enumNames := func(v *schema.EnumValue, _ int) string { return v.Name }
	if av, bv := lo.Map(a.EnumValues, enumNames), lo.Map(b.EnumValues, enumNames); !lo.ElementsMatch(av, bv) {
		return &mismatch{reason: fmt.Sprintf("enum values %v vs %v", av, bv)}
	}
	if name, reason := diffInputValues(a.InputFields, b.InputFields); reason != "" {
		return &mismatch{field: name, reason: reason}
	}
	if a.OneOf != b.OneOf {
		return &mismatch{reason: "@oneOf differs"}
	}
	return nil
}

func diffFields(a, b []*schema.Field) *mismatch {
	bByName := lo.SliceToMap(b, func(f *schema.Field) (string, *schema.Field) { return f.Name, f })
	for _, fa := range a {
		fb := bByName[fa.Name]
		if fb == nil {
			return &mismatch{field: fa.Name, reason: "declared by only one source"}
		}
		if !fa.Type.Equal(fb.Type) {
			return &mismatch{field: fa.Name, reason: fmt.Sprintf("type %s vs %s", fa.Type, fb.Type)}
		}
		if _, reason := diffInputValues(fa.Arguments, fb.Arguments); reason != "" {
			return &mismatch{field: fa.Name, reason: "arguments: " + reason}
		}
		if fa.Async || fb.Async {
			return &mismatch{field: fa.Name, reason: "resolver bound in a shared type"}
		}
	}
	if len(a) != len(b) {
		aNames := lo.Map(a, func(f *schema.Field, _ int) string { return f.Name })
		for _, fb := range b {
			if !lo.Contains(aNames, fb.Name) {
				return &mismatch{field: fb.Name, reason: "declared by only one source"}
			}
		}
	}
	return nil
}

func diffInputValues(a, b []*schema.InputValue) (string, string) {
	bByName := lo.SliceToMap(b, func(v *schema.InputValue) (string, *schema.InputValue) { return v.Name, v })
	for _, va := range a {
		vb := bByName[va.Name]
		switch {
		case vb == nil:
			return va.Name, fmt.Sprintf("%s declared by only one source", va.Name)
		case !va.Type.Equal(vb.Type):
			return va.Name, fmt.Sprintf("%s type %s vs %s", va.Name, va.Type, vb.Type)
		case !reflect.DeepEqual(va.DefaultValue, vb.DefaultValue):
			return va.Name, fmt.Sprintf("%s default %v vs %v", va.Name, va.DefaultValue, vb.DefaultValue)
		}
	}
	if len(a) != len(b) {
		for _, vb := range b {
			if _, ok := lo.Find(a, func(v *schema.InputValue) bool { return v.Name == vb.Name }); !ok {
				return vb.Name, fmt.Sprintf("%s declared by only one source", vb.Name)
			}
		}
	}
	return "", ""
}

func sameDirective(a, b *schema.Directive) bool {
	if a.IsRepeatable != b.IsRepeatable || !lo.ElementsMatch(a.Locations, b.Locations) {
		return false
	}
	_, reason := diffInputValues(a.Arguments, b.Arguments)
	return reason == ""
}
