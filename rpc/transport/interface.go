package transport

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
	"iter"
)

// --------------------------------------------------------------------------
// Frame Transport
// --------------------------------------------------------------------------

// IFrameTransport turns a duplex byte stream into a stream of typed frames.
// Send and Flush must not be called concurrently, the same holds for Receive and Frames.
// Sending and receiving may happen concurrently.
type IFrameTransport interface {
	// Send encodes msg into the write buffer
	// Errors of kind KindCodec mean that nothing was written
	Send(msg *common.Message) error
	// Flush writes all buffered frames to the peer
	Flush() error
	// Receive blocks until the next frame was read
	// It returns io.EOF if the peer closed the stream at a frame boundary
	Receive() (*common.Message, error)
	// Frames returns the sequence of all incoming frames. The sequence ends after
	// a clean EOF or after yielding the first error. It can only be consumed once.
	Frames() iter.Seq2[*common.Message, error]
	// Close closes the underlying stream, further calls are no-ops
	Close() error
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// HandleFunc is a function type that handles incoming requests
// This function is called by the server engine for every request, concurrently.
// The returned error is sent to the caller as a failed response. The context is
// cancelled when the connection fails.
type HandleFunc func(ctx context.Context, req *common.Message) (resp *common.Message, err error)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler HandleFunc)
	// Listen starts the transport layer and listens for incoming requests
	// It blocks until Close is called
	Listen(config common.ServerConfig) error
	// Close stops listening and closes all open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Ready blocks until another call can be issued without waiting for capacity
	Ready(ctx context.Context) error
	// Call sends a request to the server and returns the correlated response
	Call(ctx context.Context, req *common.Message) (resp *common.Message, err error)
	// Close closes the transport connection
	Close() error
}
