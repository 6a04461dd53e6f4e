package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"golang.org/x/sync/singleflight"
	"net"
	"sync"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientTransportConfig) error
}

const (
	// initialBackoff is the wait time before the second connection attempt
	initialBackoff = 50 * time.Millisecond
	// defaultShutdownGrace bounds how long Close waits for outstanding calls
	// if the client has no call timeout
	defaultShutdownGrace = 5 * time.Second
)

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
//
// It owns one client engine at a time. Once the engine failed or the peer closed
// the connection, the next call dials a new connection with a new engine.
type clientTransport struct {
	connector  IClientConnector
	serializer serializer.IRPCSerializer
	redial     singleflight.Group

	mu     sync.Mutex
	config common.ClientConfig
	engine *Client
	closed bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector, ser serializer.IRPCSerializer) transport.IRPCClientTransport {
	return &clientTransport{
		connector:  connector,
		serializer: ser,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	t.mu.Lock()
	old := t.engine
	t.engine = nil
	t.config = config
	t.closed = false
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	engine, err := t.dial(config)
	if err != nil {
		return err
	}
	if err := t.install(engine); err != nil {
		return err
	}

	Logger.Infof("Connected to %s using %s transport (%s mode, %s serializer)",
		config.Transport.Endpoint, t.connector.GetName(), engine.Mode(), t.serializer.GetName())
	return nil
}

func (t *clientTransport) Ready(ctx context.Context) error {
	engine, err := t.current()
	if err != nil {
		return err
	}
	return engine.Ready(ctx)
}

func (t *clientTransport) Call(ctx context.Context, req *common.Message) (*common.Message, error) {
	engine, err := t.current()
	if err != nil {
		return nil, err
	}
	return engine.Call(ctx, req)
}

// Close waits for outstanding calls, at most for the call timeout (or
// defaultShutdownGrace without one). Calls still pending after that,
// abandoned calls included, fail with a closed error.
func (t *clientTransport) Close() error {
	t.mu.Lock()
	engine := t.engine
	grace := time.Duration(t.config.TimeoutSecond) * time.Second
	t.engine = nil
	t.closed = true
	t.mu.Unlock()

	if engine == nil {
		return nil
	}
	if grace <= 0 {
		grace = defaultShutdownGrace
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := engine.Shutdown(ctx); err != nil {
		Logger.Warningf("closed connection with %d calls still pending after %s", engine.Pending(), grace)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// current returns a usable engine. A terminated engine is replaced by a new
// connection; concurrent callers share one redial, which runs without holding t.mu.
func (t *clientTransport) current() (*Client, error) {
	t.mu.Lock()
	engine, config, closed := t.engine, t.config, t.closed
	t.mu.Unlock()

	switch {
	case closed:
		return nil, common.NewClosedError("call", nil)
	case engine == nil:
		return nil, common.ErrNotConnected
	case !engine.State().Terminal():
		return engine, nil
	}

	v, err, _ := t.redial.Do("redial", func() (any, error) {
		// a redial that finished just before this one may already have replaced the engine
		t.mu.Lock()
		latest := t.engine
		t.mu.Unlock()
		if latest != engine && latest != nil && !latest.State().Terminal() {
			return latest, nil
		}

		Logger.Warningf("connection to %s terminated (%v), reconnecting", config.Transport.Endpoint, engine.Err())
		fresh, err := t.dial(config)
		if err != nil {
			return nil, err
		}
		if err := t.install(fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// install makes engine the current engine unless the transport was closed meanwhile
func (t *clientTransport) install(engine *Client) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = engine.Close()
		return common.NewClosedError("connect", nil)
	}
	old := t.engine
	t.engine = engine
	t.mu.Unlock()

	if old != nil && old != engine {
		_ = old.Close()
	}
	return nil
}

// dial establishes a connection with retries and exponential backoff
// and starts a new engine on it
func (t *clientTransport) dial(config common.ClientConfig) (*Client, error) {
	// We always try at least once, and up to maxRetries times
	maxRetries := config.Transport.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			time.Sleep(backoff(initialBackoff, i-1))
		}

		conn, err := t.connector.Connect(config.Transport.Endpoint)
		if err != nil {
			lastErr = err
			Logger.Debugf("Connection attempt %d/%d to %s failed: %v", i+1, maxRetries, config.Transport.Endpoint, err)
			continue
		}

		// Upgrade the connection with protocol-specific settings
		if err := t.connector.UpgradeConnection(conn, config.Transport); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to upgrade connection to %s: %w", config.Transport.Endpoint, err)
		}

		ft := NewFrameTransport(conn, t.serializer, config.Engine)
		return NewClient(ft, config.Engine), nil
	}

	return nil, common.NewTransportError("connect",
		fmt.Errorf("failed to connect to %s after %d attempts: %w", config.Transport.Endpoint, maxRetries, lastErr))
}
