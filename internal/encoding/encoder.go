package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/snore/snore-cli/internal/models"
)

// Format represents the radio wire format
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// Codec encodes and decodes radio messages
type Codec interface {
	Encode(msg models.Message) ([]byte, error)
	Decode(data []byte) (models.Message, error)
}

// JSONCodec encodes messages as JSON
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Encode(msg models.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *JSONCodec) Decode(data []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}

// ParseFormat accepts "json", "protobuf" or "" (json)
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatProtobuf:
		return FormatProtobuf, nil
	}
	return "", fmt.Errorf("unknown encoding %q (expected json|protobuf)", s)
}

// NewCodec creates a codec for the given format
func NewCodec(format Format) Codec {
	switch format {
	case FormatProtobuf:
		return NewProtobufCodec()
	default:
		return NewJSONCodec()
	}
}
