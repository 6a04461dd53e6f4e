package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers.
// It is the codec collaborator of the frame transport: framing (the length
// prefix) is done by the transport, the serializer only turns one Message into
// one frame payload and back.
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if the payload is corrupt
	Deserialize(b []byte, msg *common.Message) error
	// GetName returns the name of the format (e.g., "binary", "json")
	GetName() string
}

// FromName returns the serializer registered under name
func FromName(name string) (IRPCSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "binary":
		return NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (expected json, gob or binary)", name)
	}
}
