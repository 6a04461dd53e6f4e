// Package client implements the RPC client of dMux. It wraps a
// transport.IRPCClientTransport and turns method calls into request envelopes.
//
// Key Components:
//
//   - NewRPCClient: connects the transport and creates the client.
//
//   - RPCClient.Call: generic call by method name. Echo and Delay are shortcuts
//     for the services every dMux server provides.
//
// Every call is bounded by ClientConfig.TimeoutSecond. If the deadline passes the
// call returns context.DeadlineExceeded while the transport keeps the request tag
// reserved until the late response arrives. ClientConfig.RequestsPerSecond enables
// a client side token bucket (golang.org/x/time/rate) in front of the transport.
//
// A failed remote handler is returned as an error of kind common.KindHandler, the
// connection stays usable. Transport, codec and protocol errors fail every pending
// call of the connection, the next call redials.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Engine:        common.EngineConfig{Mode: common.ModeMultiplex},
//	  Transport:     common.ClientTransportConfig{Endpoint: "localhost:8080", RetryCount: 3},
//	}
//
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport(serializer.NewBinarySerializer()))
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Echo(ctx, []byte("hello"))
//
// Thread Safety:
//
//	RPCClient is safe for concurrent use, concurrent calls share one connection.
package client
