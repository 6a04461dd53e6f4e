// Package unix implements connectors for Unix domain sockets, for clients and
// servers running on the same machine.
//
// The server connector removes a stale socket file before it listens. Framing,
// correlation and error handling are inherited from the base package.
package unix
