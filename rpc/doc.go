// Package rpc provides a multiplexed RPC system: many concurrent calls share one
// connection. Every response is correlated with its request by a small tag and may
// arrive out of order (multiplex mode). A pipelined mode answers strictly in request
// order without tags.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message envelope, the error taxonomy, configuration, logging
//     and metrics.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and frame payloads.
//
//   - transport: Transport interfaces plus the protocol independent engines (base)
//     and the network connectors (tcp, unix).
//
//   - client: RPC client with per call timeouts and client side rate limiting.
//
//   - server: RPC server that routes requests to adapters by method name.
package rpc
