// Package tcp implements TCP socket connectors for the base transport. The
// connectors dial and listen, everything else (framing, correlation, backpressure)
// is done by the base package.
//
// Accepted and dialed connections are tuned with the TCPConf and SocketConf
// settings of the configuration (TCP_NODELAY, keep-alive, linger, buffer sizes).
package tcp
