package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

// ErrorKind classifies an RPC failure
type ErrorKind uint8

const (
	KindUnknown   ErrorKind = iota
	KindTransport           // I/O failure or unexpected close (connection fatal)
	KindCodec               // malformed frame (connection fatal)
	KindProtocol            // tag mismatch, unexpected response (connection fatal)
	KindHandler             // the remote handler failed (local to one exchange)
	KindClosed              // the connection was closed locally or by the peer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindCodec:
		return "codec error"
	case KindProtocol:
		return "protocol error"
	case KindHandler:
		return "handler error"
	case KindClosed:
		return "closed"
	default:
		return "unknown error"
	}
}

var (
	// ErrClosed is matched (errors.Is) by every error of kind KindClosed
	ErrClosed = errors.New("connection closed")
	// ErrNotConnected is returned by client transports used before Connect
	ErrNotConnected = errors.New("not connected")
)

// RPCError is the error type returned by the transport engines
type RPCError struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "read", "write", "match"
	Err  error
}

func (e *RPCError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrClosed) true for closed errors
func (e *RPCError) Is(target error) bool {
	return target == ErrClosed && e.Kind == KindClosed
}

// NewTransportError wraps an I/O failure
func NewTransportError(op string, err error) error {
	return &RPCError{Kind: KindTransport, Op: op, Err: err}
}

// NewCodecError wraps a malformed frame
func NewCodecError(op string, err error) error {
	return &RPCError{Kind: KindCodec, Op: op, Err: err}
}

// NewProtocolError reports a peer that broke the correlation contract
func NewProtocolError(op string, format string, args ...any) error {
	return &RPCError{Kind: KindProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

// NewHandlerError reports a failed remote handler
func NewHandlerError(op string, msg string) error {
	return &RPCError{Kind: KindHandler, Op: op, Err: errors.New(msg)}
}

// NewClosedError reports a closed connection, reason may be nil
func NewClosedError(op string, reason error) error {
	return &RPCError{Kind: KindClosed, Op: op, Err: reason}
}

// KindOf returns the kind of err or KindUnknown if err is not an RPCError
func KindOf(err error) ErrorKind {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return KindUnknown
}

// IsFatal returns true if err invalidates the correlation state of a connection
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindCodec, KindProtocol:
		return true
	default:
		return false
	}
}
