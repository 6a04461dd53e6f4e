package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the envelope for both requests and responses.
//
// In multiplex mode the Tag field correlates a response with its request. It is
// stamped by the transport right before the request is written and copied verbatim
// into the response by the server. In pipeline mode the Tag is unused (always 0).
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Correlation tag (multiplex mode only)
	Tag uint32 `json:"tag"`

	// Request only fields
	Method string `json:"method,omitempty"` // Name of the service the request is routed to

	// General fields
	Value []byte `json:"value,omitempty"` // Request payload or response payload

	// Response only fields
	Err string `json:"err,omitempty"` // Empty if no error, otherwise the handler error
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a new request for the given method
func NewRequest(method string, value []byte) *Message {
	return &Message{
		MsgType: MsgTRequest,
		Method:  method,
		Value:   value,
	}
}

// NewResponse creates the response for req carrying value.
// The tag of the request is copied so that the client can correlate the response.
func NewResponse(req *Message, value []byte) *Message {
	return &Message{
		MsgType: MsgTResponse,
		Tag:     req.Tag,
		Value:   value,
	}
}

// NewErrorResponse creates a failed response for req.
// A failed response is local to its exchange and never tears down the connection.
func NewErrorResponse(req *Message, err error) *Message {
	msg := &Message{
		MsgType: MsgTError,
		Tag:     req.Tag,
		Err:     "unknown error",
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// IsResponse returns true for successful and failed responses
func (m *Message) IsResponse() bool {
	return m.MsgType == MsgTResponse || m.MsgType == MsgTError
}

// --------------------------------------------------------------------------
// Message Type
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	MsgTUnknown  MessageType = iota
	MsgTRequest              // Request issued by a client
	MsgTResponse             // Successful response
	MsgTError                // Response of a failed handler
)

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTRequest:
		return "request"
	case MsgTResponse:
		return "response"
	case MsgTError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "request":
		*t = MsgTRequest
	case "response":
		*t = MsgTResponse
	case "error":
		*t = MsgTError
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}
