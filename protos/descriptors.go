// Package protos provides the object detection label map used by the TFRecord format.
//
// The message types are built from a descriptor at init time and handled as dynamic messages, so
// no generated code is needed.
package protos

import (
	"fmt"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Message descriptors, resolved by init.
var (
	labelMapDesc     protoreflect.MessageDescriptor
	labelMapItemDesc protoreflect.MessageDescriptor
)

func init() {
	labelMapFile, err := protodesc.NewFile(labelMapFileProto(), nil)
	if err != nil {
		panic(fmt.Sprintf("protos: invalid label map descriptor: %v", err))
	}
	labelMapDesc = labelMapFile.Messages().ByName("StringIntLabelMap")
	labelMapItemDesc = labelMapFile.Messages().ByName("StringIntLabelMapItem")
}

func field(name string, number int32, label descriptorpb.FieldDescriptorProto_Label,
	typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {

	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  label.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	typeInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	typeEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
)

// labelMapFileProto mirrors object_detection/protos/string_int_label_map.proto. Only name, id and
// display_name are read, the other fields are declared so that label maps using them parse.
func labelMapFileProto() *descriptorpb.FileDescriptorProto {
	const pkg = ".object_detection.protos."

	enumValue := func(name string, number int32) *descriptorpb.EnumValueDescriptorProto {
		return &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
		}
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("object_detection/protos/string_int_label_map.proto"),
		Package: proto.String("object_detection.protos"),
		Syntax:  proto.String("proto2"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			{
				Name: proto.String("LVISFrequency"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					enumValue("UNSPECIFIED", 0),
					enumValue("FREQUENT", 1),
					enumValue("COMMON", 2),
					enumValue("RARE", 3),
				},
			},
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("StringIntLabelMapItem"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, optional, typeString, ""),
					field("id", 2, optional, typeInt32, ""),
					field("display_name", 3, optional, typeString, ""),
					field("keypoints", 4, repeated, typeMessage,
						pkg+"StringIntLabelMapItem.KeypointMap"),
					field("ancestor_ids", 5, repeated, typeInt32, ""),
					field("descendant_ids", 6, repeated, typeInt32, ""),
					field("frequency", 7, optional, typeEnum, pkg+"LVISFrequency"),
					field("instance_count", 8, optional, typeInt32, ""),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("KeypointMap"),
						Field: []*descriptorpb.FieldDescriptorProto{
							field("id", 1, optional, typeInt32, ""),
							field("label", 2, optional, typeString, ""),
						},
					},
				},
			},
			{
				Name: proto.String("StringIntLabelMap"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("item", 1, repeated, typeMessage, pkg+"StringIntLabelMapItem"),
				},
			},
		},
	}
}
