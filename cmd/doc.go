// Package cmd implements the command-line interface for dMux. It provides
// a server running the echo and delay services and client commands that call
// them over one shared connection.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the dMux server
//   - call: Client commands (echo, delay) and the perf benchmark
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dmux -help for a list of all commands.
package cmd
