package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const timestampName protoreflect.FullName = "google.protobuf.Timestamp"

// FromDescriptor derives a model from a message descriptor. Field names use
// the JSON name of the proto field. Every field is nullable; repeated fields
// become lists. Timestamps map to Date, maps and other messages to JSON, and
// enums to String.
func FromDescriptor(md protoreflect.MessageDescriptor) (Model, error) {
	m := Model{
		Name:        string(md.Name()),
		Description: leadingComment(md),
	}
	var errs error
	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Name() == "_id" {
			continue
		}
		t, err := fieldType(fd)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s: %w", md.FullName(), fd.Name(), err))
			continue
		}
		m.Fields = append(m.Fields, Field{
			Name:        fd.JSONName(),
			Type:        t,
			List:        fd.IsList(),
			Description: leadingComment(fd),
		})
	}
	if errs != nil {
		return Model{}, errs
	}
	return m, nil
}

func fieldType(fd protoreflect.FieldDescriptor) (FieldType, error) {
	if fd.IsMap() {
		return TypeJSON, nil
	}
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return TypeBoolean, nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return TypeInt, nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind,
		protoreflect.FloatKind, protoreflect.DoubleKind:
		return TypeFloat, nil
	case protoreflect.StringKind, protoreflect.EnumKind:
		return TypeString, nil
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if fd.Message().FullName() == timestampName {
			return TypeDate, nil
		}
		return TypeJSON, nil
	}
	return "", fmt.Errorf("unsupported field kind %s", fd.Kind())
}

func leadingComment(d protoreflect.Descriptor) string {
	loc := d.ParentFile().SourceLocations().ByDescriptor(d)
	return strings.TrimSpace(loc.LeadingComments)
}

// LoadDescriptorSet reads a binary FileDescriptorSet (protoc
// --descriptor_set_out) and returns a model for every top-level message
// outside the google.protobuf package. With names given, only those messages
// (by full name) are returned.
func LoadDescriptorSet(path string, names ...string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read descriptor set: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("model: decode descriptor set %s: %w", path, err)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("model: descriptor set %s: %w", path, err)
	}
	return fromFiles(files, names)
}

func fromFiles(files *protoregistry.Files, names []string) ([]Model, error) {
	want := make(map[protoreflect.FullName]bool, len(names))
	for _, n := range names {
		want[protoreflect.FullName(n)] = true
	}

	var (
		models []Model
		errs   error
	)
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		if fd.Package() == "google.protobuf" {
			return true
		}
		msgs := fd.Messages()
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			if len(want) > 0 && !want[md.FullName()] {
				continue
			}
			m, err := FromDescriptor(md)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			models = append(models, m)
		}
		return true
	})
	if errs != nil {
		return nil, errs
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("model: no messages found")
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}
