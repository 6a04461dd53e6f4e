// Package transport defines the interfaces of the RPC transport layer. It provides a
// common contract for all transport implementations so both the RPC client and the
// RPC server stay independent of the network protocol.
//
// Key Components:
//
//   - IFrameTransport: typed frame stream on top of a duplex byte stream.
//
//   - IRPCClientTransport: client side, one multiplexed (or pipelined) connection
//     that any number of goroutines can issue calls on.
//
//   - IRPCServerTransport: server side, accepts connections and runs the handler
//     for every request it receives.
//
//   - HandleFunc: Function type for request handling callbacks.
//
// The implementations live in the base package (protocol independent engines) and
// in the tcp and unix packages (connectors).
package transport
