// Package common provides core data structures and utilities shared across
// the RPC transport. It defines the message envelope, the error taxonomy,
// configuration structures and logging.
//
// The package focuses on:
//   - Message envelope definition for requests and responses
//   - Typed errors that separate connection fatal failures from per request failures
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//   - Engine metrics (VictoriaMetrics)
//
// Key Components:
//
//   - Message: Envelope of every frame. Carries the correlation Tag in
//     multiplex mode, the routed Method, the payload and the handler error.
//
//   - RPCError / ErrorKind: Transport, codec and protocol errors are fatal to
//     a connection and reach every pending call. Handler errors stay local to
//     one exchange. Closed errors match ErrClosed with errors.Is.
//
//   - ConnState: Monotonic state of a client or server engine.
//
//   - EngineConfig, ClientConfig, ServerConfig: Configuration including the
//     correlation Mode (multiplex or pipeline) and the MaxPending bound.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
