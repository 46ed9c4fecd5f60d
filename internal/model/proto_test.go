package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

func buildMenuFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()
	file := protobuilder.NewFile("menu/v1/menu.proto")
	file.SetPackageName("menu.v1")
	file.SetSyntax(protoreflect.Proto3)

	kind := protobuilder.NewEnum("Kind")
	for i, name := range []protoreflect.Name{"KIND_UNSPECIFIED", "KIND_STARTER"} {
		ev := protobuilder.NewEnumValue(name)
		ev.SetNumber(protoreflect.EnumNumber(i))
		kind.AddValue(ev)
	}
	file.AddEnum(kind)

	tags := protobuilder.NewField("tags", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	tags.SetRepeated()

	dish := protobuilder.NewMessage("Dish")
	fields := []*protobuilder.FieldBuilder{
		protobuilder.NewField("_id", protobuilder.FieldTypeScalar(protoreflect.StringKind)),
		protobuilder.NewField("title", protobuilder.FieldTypeScalar(protoreflect.StringKind)),
		protobuilder.NewField("price_cents", protobuilder.FieldTypeScalar(protoreflect.Int64Kind)),
		protobuilder.NewField("portions", protobuilder.FieldTypeScalar(protoreflect.Int32Kind)),
		protobuilder.NewField("vegan", protobuilder.FieldTypeScalar(protoreflect.BoolKind)),
		tags,
		protobuilder.NewField("kind", protobuilder.FieldTypeEnum(kind)),
	}
	for i, fb := range fields {
		fb.SetNumber(protoreflect.FieldNumber(i + 1))
		dish.AddField(fb)
	}
	file.AddMessage(dish)

	fd, err := file.Build()
	require.NoError(t, err)
	return fd
}

func TestFromDescriptor(t *testing.T) {
	fd := buildMenuFile(t)

	m, err := FromDescriptor(fd.Messages().ByName("Dish"))
	require.NoError(t, err)
	require.Equal(t, "Dish", m.Name)
	require.Equal(t, []Field{
		{Name: "title", Type: TypeString},
		{Name: "priceCents", Type: TypeFloat},
		{Name: "portions", Type: TypeInt},
		{Name: "vegan", Type: TypeBoolean},
		{Name: "tags", Type: TypeString, List: true},
		{Name: "kind", Type: TypeString},
	}, m.Fields)
	require.NoError(t, Validate([]Model{m}))
}

func TestLoadDescriptorSet(t *testing.T) {
	fd := buildMenuFile(t)
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{protodesc.ToFileDescriptorProto(fd)}}
	data, err := proto.Marshal(set)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "menu.pb")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	models, err := LoadDescriptorSet(path)
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, "Dish", models[0].Name)

	_, err = LoadDescriptorSet(path, "menu.v1.Missing")
	require.ErrorContains(t, err, "no messages found")

	require.NoError(t, os.WriteFile(path, []byte("not a descriptor set"), 0o600))
	_, err = LoadDescriptorSet(path)
	require.Error(t, err)
}
