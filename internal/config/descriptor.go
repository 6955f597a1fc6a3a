package config

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// configFileDescriptor is janitord's configuration message shape,
// expressed as a FileDescriptorProto rather than generated by protoc from
// a checked-in .proto file: janitord ships no .proto schema of its own,
// but the wire format it reads is real protobuf text format, so the
// descriptor that shape implies is built by hand instead of invented.
// prototext.Unmarshal in unmarshalText (textproto.go) parses against a
// dynamicpb.Message built from this descriptor, the same mechanism
// protoc-gen-go's generated accessors sit on top of.
var configFileDescriptor = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("janitord/config.proto"),
	Package: proto.String("janitord.config"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		{
			Name: proto.String("Config"),
			Field: []*descriptorpb.FieldDescriptorProto{
				repeatedMessageField("distribution", 1, ".janitord.config.Distribution"),
				repeatedMessageField("campaign", 2, ".janitord.config.Campaign"),
				repeatedMessageField("apt_repository", 3, ".janitord.config.AptRepository"),
				optionalMessageField("runner", 4, ".janitord.config.RunnerConfig"),
				optionalMessageField("publisher", 5, ".janitord.config.PublisherConfig"),
			},
		},
		{
			Name: proto.String("Distribution"),
			Field: []*descriptorpb.FieldDescriptorProto{
				stringField("name", 1),
				stringField("archive", 2),
				repeatedStringField("component", 3),
				repeatedStringField("extra_apt_repository", 4),
			},
		},
		{
			Name: proto.String("Campaign"),
			Field: []*descriptorpb.FieldDescriptorProto{
				stringField("name", 1),
				stringField("command", 2),
				stringField("publish_mode", 3),
				stringField("bucket", 4),
			},
		},
		{
			Name: proto.String("AptRepository"),
			Field: []*descriptorpb.FieldDescriptorProto{
				stringField("name", 1),
				repeatedStringField("component", 2),
				repeatedStringField("architecture", 3),
				stringField("signing_key_id", 4),
			},
		},
		{
			Name: proto.String("RunnerConfig"),
			Field: []*descriptorpb.FieldDescriptorProto{
				// Durations are quoted textproto strings (e.g. "60m"),
				// parsed with time.ParseDuration after extraction, the
				// same literal shape the previous hand-rolled scanner
				// accepted.
				stringField("run_timeout", 1),
				stringField("listen_address", 2),
			},
		},
		{
			Name: proto.String("PublisherConfig"),
			Field: []*descriptorpb.FieldDescriptorProto{
				stringField("proposal_refresh_interval", 1),
				repeatedMessageField("max_mps_per_bucket", 2, ".janitord.config.PublisherConfig.MaxMpsPerBucketEntry"),
			},
			NestedType: []*descriptorpb.DescriptorProto{
				mapEntryType("MaxMpsPerBucketEntry", descriptorpb.FieldDescriptorProto_TYPE_INT32),
			},
		},
	},
}

func stringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
	}
}

func repeatedStringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
	}
}

func optionalMessageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}

func repeatedMessageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}

// mapEntryType builds the implicit nested "FooEntry" message protoc
// generates for every map<string, V> field: a two-field message flagged
// MapEntry=true so the proto runtime treats repeated instances of it as a
// single map rather than a list of structs.
func mapEntryType(name string, valueType descriptorpb.FieldDescriptorProto_Type) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:   proto.String("key"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			},
			{
				Name:   proto.String("value"),
				Number: proto.Int32(2),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   valueType.Enum(),
			},
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

// configFile is the resolved protoreflect.FileDescriptor built once from
// configFileDescriptor. protodesc.NewFile validates field numbers, type
// references and map-entry shape the way protoc itself would.
var configFile protoreflect.FileDescriptor

func init() {
	f, err := protodesc.NewFile(configFileDescriptor, protoregistry.GlobalFiles)
	if err != nil {
		panic("config: building configuration descriptor: " + err.Error())
	}
	configFile = f
}

func messageDescriptor(name string) protoreflect.MessageDescriptor {
	d := configFile.Messages().ByName(protoreflect.Name(name))
	if d == nil {
		panic("config: no such message in descriptor: " + name)
	}
	return d
}
