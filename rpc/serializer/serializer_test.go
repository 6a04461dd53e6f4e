package serializer

import (
	"bytes"
	"github.com/ValentinKolb/dMux/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTRequest},

		// Tagged request
		{
			MsgType: common.MsgTRequest,
			Tag:     42,
			Method:  "echo",
			Value:   []byte("test-value"),
		},

		// Untagged (pipeline) response
		{
			MsgType: common.MsgTResponse,
			Value:   []byte("test-value"),
		},

		// Handler error
		{
			MsgType: common.MsgTError,
			Tag:     7,
			Err:     "test error message",
		},

		// Largest tag
		{
			MsgType: common.MsgTResponse,
			Tag:     ^uint32(0),
			Method:  "delay",
			Value:   []byte{0, 1, 2, 255},
			Err:     "partial",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsTarget makes sure no field of a reused message survives a decode
func TestDeserializeResetsTarget(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTResponse, Value: []byte("b")})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			result := common.Message{MsgType: common.MsgTError, Tag: 9, Method: "stale", Err: "stale"}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if result.Tag != 0 || result.Method != "" || result.Err != "" {
				t.Errorf("stale fields left in message: %+v", result)
			}
			if result.MsgType != common.MsgTResponse || !bytes.Equal(result.Value, []byte("b")) {
				t.Errorf("unexpected message: %+v", result)
			}
		})
	}
}

// TestFromName tests the lookup of serializers by name
func TestFromName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		s, err := FromName(name)
		if err != nil {
			t.Fatalf("FromName(%q) failed: %v", name, err)
		}
		if s.GetName() != name {
			t.Errorf("FromName(%q).GetName() = %q", name, s.GetName())
		}
	}
	if _, err := FromName("xml"); err == nil {
		t.Errorf("expected error for unknown serializer")
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
		size int
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
			size: 2,
		},
		{
			name: "Empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTResponse,
				Value:   []byte{},
			},
			size: 2 + 4,
		},
		{
			name: "Zero tag is omitted",
			msg: common.Message{
				MsgType: common.MsgTRequest,
				Method:  "echo",
			},
			size: 2 + 4 + 4,
		},
		{
			name: "Tag only",
			msg: common.Message{
				MsgType: common.MsgTResponse,
				Tag:     1,
			},
			size: 2 + 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if len(data) != tc.size {
				t.Errorf("Size mismatch: expected %d, got %d", tc.size, len(data))
			}

			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
			if tc.msg.Tag != result.Tag {
				t.Errorf("Tag mismatch: expected %d, got %d", tc.msg.Tag, result.Tag)
			}
			if tc.msg.Method != result.Method {
				t.Errorf("Method mismatch: expected '%s', got '%s'", tc.msg.Method, result.Method)
			}

			// Special handling for byte slices that may be nil or empty
			if (tc.msg.Value == nil) != (result.Value == nil) {
				t.Errorf("Value nil/non-nil mismatch: expected %v, got %v", tc.msg.Value, result.Value)
			} else if !bytes.Equal(tc.msg.Value, result.Value) {
				t.Errorf("Value mismatch: expected %v, got %v", tc.msg.Value, result.Value)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Truncated tag",
			data:        []byte{1, 1, 0, 0}, // Claims a tag but only 2 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for method",
			data:        []byte{1, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims method length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Huge length for error",
			data:        []byte{1, 8, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
		{
			name:        "Unknown flag",
			data:        []byte{1, 0x80},
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{1, 0, 'x'},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
