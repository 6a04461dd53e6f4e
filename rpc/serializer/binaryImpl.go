package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: [MsgType:1][flags:1] followed by the present fields in order
// Tag (4 bytes), Method, Value and Err (each 4 byte length + data).
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTag    byte = 1 << 0
	hasMethod byte = 1 << 1
	hasValue  byte = 1 << 2
	hasErr    byte = 1 << 3

	knownFlags = hasTag | hasMethod | hasValue | hasErr
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0
	pos := 2 // Start after MsgType and flags

	// Handle Tag
	if msg.Tag != 0 {
		flags |= hasTag
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Tag)
		pos += 4
	}

	// Handle Method
	if msg.Method != "" {
		flags |= hasMethod
		pos = putBytes(result, pos, []byte(msg.Method))
	}

	// Handle Value
	if msg.Value != nil {
		flags |= hasValue
		pos = putBytes(result, pos, msg.Value)
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		putBytes(result, pos, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	if flags&^knownFlags != 0 {
		return fmt.Errorf("unknown flags 0x%02x", flags&^knownFlags)
	}

	pos := 2

	// Read Tag if present
	if flags&hasTag != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for tag")
		}
		msg.Tag = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	} else {
		msg.Tag = 0
	}

	// Read Method if present
	if flags&hasMethod != 0 {
		field, next, err := readBytes(data, pos, "method")
		if err != nil {
			return err
		}
		msg.Method = string(field)
		pos = next
	} else {
		msg.Method = ""
	}

	// Read Value if present
	if flags&hasValue != 0 {
		field, next, err := readBytes(data, pos, "value")
		if err != nil {
			return err
		}
		// Create an empty slice (not nil) if length is 0, allocate only if needed
		if msg.Value == nil || cap(msg.Value) < len(field) {
			msg.Value = make([]byte, len(field))
		} else {
			msg.Value = msg.Value[:len(field)]
		}
		copy(msg.Value, field)
		pos = next
	} else {
		msg.Value = nil
	}

	// Read Err if present
	if flags&hasErr != 0 {
		field, next, err := readBytes(data, pos, "error")
		if err != nil {
			return err
		}
		msg.Err = string(field)
		pos = next
	} else {
		msg.Err = ""
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}

	return nil
}

func (b binarySerializerImpl) GetName() string {
	return "binary"
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Tag != 0 {
		size += 4 // uint32
	}
	if msg.Method != "" {
		size += 4 + len(msg.Method) // 4 bytes for length + method string
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}

	return size
}

// putBytes writes a length prefixed field at pos and returns the next position
func putBytes(dst []byte, pos int, field []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(field)))
	pos += 4
	copy(dst[pos:pos+len(field)], field)
	return pos + len(field)
}

// readBytes reads a length prefixed field at pos, the returned slice aliases data
func readBytes(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if n < 0 || n > len(data)-pos {
		return nil, 0, fmt.Errorf("data too short for %s data", name)
	}
	return data[pos : pos+n], pos + n, nil
}
