// Package base implements the protocol independent part of the RPC transport:
// framing, request/response correlation and the per-connection engines. Network
// protocols plug in through the IClientConnector and IServerConnector interfaces
// (see the tcp and unix packages).
//
// Framing:
//
//	Every frame is a 4 byte big endian payload length followed by the payload
//	produced by a serializer.IRPCSerializer. NewFrameTransport wraps any
//	io.ReadWriteCloser (a socket or a net.Pipe) into a transport.IFrameTransport.
//
// Correlation modes:
//
//   - multiplex: every request carries a tag allocated from a tagstore.Store.
//     Responses are matched by tag and may arrive in any order. A response with
//     an unknown tag fails the connection.
//
//   - pipeline: requests are untagged, the server answers in request order and
//     the client resolves the oldest pending call with every response.
//
// Key Components:
//
//   - Client: client engine of one connection. Calls are written under a write
//     lock, one read loop goroutine resolves them. The number of outstanding calls
//     is bounded by EngineConfig.MaxPending (Ready blocks, TryReady probes).
//
//   - Server: server engine of one connection. Handlers run concurrently (bounded
//     per connection), a single writer goroutine sends the responses.
//
//   - clientTransport / serverTransport: dial and accept loops around the engines.
//     The client transport redials after its engine failed, the server transport
//     tracks one session per accepted connection.
//
// Failure handling:
//
//	Transport, codec and protocol errors are fatal for a connection: the engine
//	moves to StateFailed and every pending call fails with that error. A failed
//	handler only fails its own call. Abandoned calls keep their tag until their
//	response arrives, so a late response is never matched with a new call.
//
// Thread Safety:
//
//	Client, Server and both transports are safe for concurrent use.
package base
