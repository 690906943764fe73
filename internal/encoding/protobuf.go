package encoding

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/snore/snore-cli/internal/models"
)

// ProtobufCodec encodes messages as a google.protobuf.Struct
type ProtobufCodec struct{}

func NewProtobufCodec() *ProtobufCodec {
	return &ProtobufCodec{}
}

func (c *ProtobufCodec) Encode(msg models.Message) ([]byte, error) {
	pb := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"group":  structpb.NewNumberValue(float64(msg.Group)),
			"name":   structpb.NewStringValue(msg.Name),
			"value":  structpb.NewNumberValue(msg.Value),
			"serial": structpb.NewNumberValue(float64(msg.Serial)),
		},
	}
	if msg.SentAt != "" {
		pb.Fields["ts"] = structpb.NewStringValue(msg.SentAt)
	}
	return proto.Marshal(pb)
}

func (c *ProtobufCodec) Decode(data []byte) (models.Message, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return models.Message{}, fmt.Errorf("failed to decode message: %w", err)
	}

	name, ok := pb.Fields["name"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return models.Message{}, fmt.Errorf("message has no name")
	}
	value, ok := pb.Fields["value"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return models.Message{}, fmt.Errorf("message %s has no numeric value", name.StringValue)
	}

	return models.Message{
		Group:  int(pb.Fields["group"].GetNumberValue()),
		Name:   name.StringValue,
		Value:  value.NumberValue,
		Serial: uint32(pb.Fields["serial"].GetNumberValue()),
		SentAt: pb.Fields["ts"].GetStringValue(),
	}, nil
}
