package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Engine configuration (shared by client and server)
// --------------------------------------------------------------------------

// Mode selects how responses are correlated with requests
type Mode string

const (
	// ModeMultiplex correlates by tag, responses may arrive in any order
	ModeMultiplex Mode = "multiplex"
	// ModePipeline correlates by position, responses arrive in request order
	ModePipeline Mode = "pipeline"
)

// ParseMode converts a string to a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMultiplex:
		return ModeMultiplex, nil
	case ModePipeline:
		return ModePipeline, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected multiplex or pipeline)", s)
	}
}

const (
	// DefaultMaxPending bounds the outstanding calls of one client connection.
	// There is no unbounded mode, a value <= 0 selects this default.
	DefaultMaxPending = 1024
	// DefaultMaxWorkersPerConn bounds the concurrently running handlers of one server connection
	DefaultMaxWorkersPerConn = 64
	// DefaultMaxFrameSize is the largest accepted frame payload
	DefaultMaxFrameSize = 16 * 1024 * 1024 // 16 MB
	// DefaultBufferSize is the size of the read and write buffers of a frame transport
	DefaultBufferSize = 64 * 1024 // 64 KB
)

// EngineConfig configures the client and server engines of one connection
type EngineConfig struct {
	Mode         Mode
	MaxPending   int    // client: max outstanding calls, server: max running handlers
	MaxFrameSize uint32 // frames above this size are rejected as corrupt
	BufferSize   int    // bufio buffer size for reads and writes
}

// WithDefaults returns a copy with all unset fields replaced by their defaults
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.Mode == "" {
		c.Mode = ModeMultiplex
	}
	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxPending
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// WithServerDefaults is WithDefaults, except that an unset MaxPending selects DefaultMaxWorkersPerConn
func (c EngineConfig) WithServerDefaults() EngineConfig {
	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxWorkersPerConn
	}
	return c.WithDefaults()
}

// --------------------------------------------------------------------------
// Socket configuration
// --------------------------------------------------------------------------

// SocketConf holds kernel socket buffer sizes (0 keeps the os default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds tcp specific settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // 0 keeps the os default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the listener settings
type ServerTransportConfig struct {
	Endpoint string
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of the RPC server
type ServerConfig struct {
	// per request handler timeout (0 disables the timeout)
	TimeoutSecond int64

	// upper bound of the artificial latency of the delay service
	MaxDelayMillisecond int

	// engine and listener settings
	Engine    EngineConfig
	Transport ServerTransportConfig

	// prometheus endpoint (empty disables it)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	engine := c.Engine.WithServerDefaults()

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Handler Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Max Delay", fmt.Sprintf("%d ms", c.MaxDelayMillisecond))

	addSection("Engine")
	addField("Mode", string(engine.Mode))
	addField("Workers Per Conn", strconv.Itoa(engine.MaxPending))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", engine.MaxFrameSize))
	addField("Buffer Size", fmt.Sprintf("%d bytes", engine.BufferSize))

	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the dial settings
type ClientTransportConfig struct {
	Endpoint   string
	RetryCount int // attempts to (re)establish the connection
	SocketConf
	TCPConf
}

// ClientConfig holds all configuration parameters of an RPC client
type ClientConfig struct {
	// per call timeout (0 disables the timeout)
	TimeoutSecond int

	// client side rate limit (0 disables the limit)
	RequestsPerSecond float64

	Engine    EngineConfig
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	engine := c.Engine.WithDefaults()

	addSection("Client Configuration")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	if c.RequestsPerSecond > 0 {
		addField("Rate Limit", fmt.Sprintf("%.1f req/sec", c.RequestsPerSecond))
	} else {
		addField("Rate Limit", "disabled")
	}

	addSection("Engine")
	addField("Mode", string(engine.Mode))
	addField("Max Pending", strconv.Itoa(engine.MaxPending))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", engine.MaxFrameSize))

	return sb.String()
}
