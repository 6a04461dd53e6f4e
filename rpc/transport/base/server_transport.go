package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerTransportConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerTransportConfig) error
}

// maxAcceptBackoff bounds the wait time after temporary accept errors
const maxAcceptBackoff = time.Second

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// session is one accepted connection and its engine
type session struct {
	id      string
	remote  string
	engine  *Server
	started time.Time
}

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	serializer serializer.IRPCSerializer
	handler    transport.HandleFunc
	sessions   *xsync.MapOf[string, *session]
	wg         sync.WaitGroup

	mu       sync.Mutex
	config   common.ServerConfig
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport.
// Every accepted connection is served by its own server engine.
func NewBaseServerTransport(connector IServerConnector, ser serializer.IRPCSerializer) transport.IRPCServerTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &serverTransport{
		connector:  connector,
		serializer: ser,
		sessions:   xsync.NewMapOf[string, *session](),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.HandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return common.NewClosedError("listen", nil)
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config.Transport)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener
	t.mu.Unlock()

	engine := config.Engine.WithServerDefaults()
	Logger.Infof("Starting %s server on %s (%s mode, %s serializer, %d workers per connection)",
		t.connector.GetName(), config.Transport.Endpoint, engine.Mode, t.serializer.GetName(), engine.MaxPending)

	// Accept connections
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.isClosed() || errors.Is(err, net.ErrClosed) {
				t.wg.Wait()
				return nil
			}

			// back off on temporary errors (e.g. too many open files)
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptBackoff)
			}
			Logger.Errorf("Accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if err := t.connector.UpgradeConnection(conn, config.Transport); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", remoteAddr(conn), err)
			_ = conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	listener := t.listener
	t.mu.Unlock()

	t.cancel()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.sessions.Range(func(_ string, s *session) bool {
		_ = s.engine.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection serves one connection until it terminates
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()

	t.mu.Lock()
	config := t.config
	t.mu.Unlock()

	s := &session{
		id:      uuid.NewString(),
		remote:  remoteAddr(conn),
		started: time.Now(),
	}
	ft := NewFrameTransport(conn, t.serializer, config.Engine)
	s.engine = NewServer(ft, t.handler, config.Engine)

	t.sessions.Store(s.id, s)
	defer t.sessions.Delete(s.id)

	// Close may have missed the session while it was being registered
	if t.isClosed() {
		_ = s.engine.Close()
	}

	Logger.Debugf("session %s opened by %s", s.id, s.remote)
	if err := s.engine.Serve(t.ctx); err != nil {
		Logger.Errorf("session %s (%s) failed after %s: %v", s.id, s.remote, time.Since(s.started), err)
		return
	}
	Logger.Debugf("session %s closed after %s", s.id, time.Since(s.started))
}

// remoteAddr returns a printable peer address, unnamed unix peers have none
func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "unnamed peer"
}

func (t *serverTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
