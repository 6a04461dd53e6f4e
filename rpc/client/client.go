package client

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"golang.org/x/time/rate"
	"math"
	"time"
)

// Names of the services every dMux server provides
const (
	MethodEcho  = "echo"
	MethodDelay = "delay"
)

// RPCClient issues calls over a client transport.
// Every call is bounded by the configured timeout and the optional client side rate limit.
type RPCClient struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewRPCClient creates a new RPC client and connects the transport
// The function takes a config and a transport as parameters
func NewRPCClient(config common.ClientConfig, transport transport.IRPCClientTransport) (*RPCClient, error) {
	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	c := &RPCClient{
		config:    config,
		transport: transport,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		timeout:   time.Duration(config.TimeoutSecond) * time.Second,
	}

	if config.RequestsPerSecond > 0 {
		burst := int(math.Max(1, math.Ceil(config.RequestsPerSecond)))
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
		Logger.Infof("client side rate limit: %.1f req/sec (burst %d)", config.RequestsPerSecond, burst)
	}

	return c, nil
}

// Call invokes method on the server with value as payload and returns the response payload
func (c *RPCClient) Call(ctx context.Context, method string, value []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := invokeRPCRequest(ctx, common.NewRequest(method, value), c.transport)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Echo returns value after a round trip through the server
func (c *RPCClient) Echo(ctx context.Context, value []byte) ([]byte, error) {
	return c.Call(ctx, MethodEcho, value)
}

// Delay is Echo with a random server side latency, responses of concurrent
// calls complete out of order
func (c *RPCClient) Delay(ctx context.Context, value []byte) ([]byte, error) {
	return c.Call(ctx, MethodDelay, value)
}

// Ready blocks until the transport can accept another call
func (c *RPCClient) Ready(ctx context.Context) error {
	return c.transport.Ready(ctx)
}

// Close waits for outstanding calls and closes the transport
func (c *RPCClient) Close() error {
	return c.transport.Close()
}
