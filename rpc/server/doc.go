// Package server implements the RPC server of dMux. It routes every request to an
// adapter selected by the method name of the request.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface for the services of the server. An adapter
//     handles the requests of one method.
//
//   - NewEchoServerAdapter: answers every request with its own payload.
//
//   - NewDelayServerAdapter: like echo, but waits a random time first so that
//     concurrent requests finish out of order (exercises tag correlation).
//
//   - NewRPCServer: creates a server on top of a transport with both services
//     registered.
//
// A request for an unknown method, a failing adapter and an adapter exceeding
// ServerConfig.TimeoutSecond all produce a failed response. The connection stays
// usable in all three cases.
//
// If ServerConfig.MetricsEndpoint is set, Serve also exposes the transport
// metrics in prometheus text format on http://<endpoint>/metrics.
//
// Usage Example:
//
//	s := server.NewRPCServer(config, unix.NewUnixServerTransport(serializer.NewBinarySerializer()))
//	s.RegisterAdapter("upper", myAdapter)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
