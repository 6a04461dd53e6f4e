package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/someonegg/gox/syncx"
	"golang.org/x/sync/semaphore"
	"io"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// errShutdown is returned for calls issued after Shutdown
var errShutdown = errors.New("client is shutting down")

// Client is the client engine of one connection.
//
// Any number of goroutines can issue calls. Requests are written under a write lock,
// a single background goroutine reads all responses and resolves the pending calls.
// The number of outstanding calls is bounded by EngineConfig.MaxPending.
//
// A fatal error (transport, codec or protocol) fails every outstanding call and
// moves the engine into StateFailed. Closed and failed engines are never reused.
type Client struct {
	ft    transport.IFrameTransport
	mode  common.Mode
	slots *semaphore.Weighted
	limit int64
	held  atomic.Int64 // slots taken by calls and Ready, read by TryReady

	wmu sync.Mutex // serializes writes to ft

	mu       sync.Mutex // protects the fields below
	corr     correlator
	state    common.ConnState // only Closing and the terminal states are stored
	err      error
	shutdown bool
	waiting  int

	closing  atomic.Bool
	done     syncx.DoneChan
	doneOnce sync.Once
	loopDone chan struct{}
}

// NewClient starts a client engine on ft. The engine owns ft from now on.
func NewClient(ft transport.IFrameTransport, config common.EngineConfig) *Client {
	config = config.WithDefaults()

	var corr correlator
	if config.Mode == common.ModePipeline {
		corr = newPipelineCorrelator()
	} else {
		corr = newMultiplexCorrelator(config.MaxPending)
	}

	c := &Client{
		ft:       ft,
		mode:     config.Mode,
		slots:    semaphore.NewWeighted(int64(config.MaxPending)),
		limit:    int64(config.MaxPending),
		corr:     corr,
		state:    common.StateIdle,
		done:     syncx.NewDoneChan(),
		loopDone: make(chan struct{}),
	}

	go c.readLoop()

	return c
}

// --------------------------------------------------------------------------
// Caller API
// --------------------------------------------------------------------------

// Ready blocks until the engine can accept another call.
// It returns the terminal error if the engine is closed or failed.
func (c *Client) Ready(ctx context.Context) error {
	if err := c.admit(); err != nil {
		return err
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	c.release()
	return c.admit()
}

// TryReady reports whether a call could be issued right now without waiting.
// It only inspects the engine, the answer may be outdated once it returns.
func (c *Client) TryReady() bool {
	return c.admit() == nil && c.held.Load() < c.limit
}

// Call sends req and waits for the correlated response.
//
// The Tag of req is overwritten. If ctx ends before the response arrives, Call returns
// ctx.Err() but the call stays registered until its response arrives or the connection
// fails, so its tag is never reused early.
func (c *Client) Call(ctx context.Context, req *common.Message) (*common.Message, error) {
	if req == nil {
		return nil, fmt.Errorf("call: nil request")
	}
	if err := c.admit(); err != nil {
		return nil, err
	}
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	p := newPendingCall()
	if err := c.dispatch(req, p); err != nil {
		c.release()
		return nil, err
	}

	select {
	case res := <-p.done:
		return res.msg, res.err
	case <-ctx.Done():
		Logger.Debugf("call with tag %d abandoned: %v", p.tag, ctx.Err())
		return nil, ctx.Err()
	}
}

// Shutdown rejects new calls, waits until all outstanding calls are resolved and closes
// the engine. If ctx ends first the engine is closed anyway and ctx.Err() is returned.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	if !c.state.Terminal() {
		c.state = common.StateClosing
	}
	c.mu.Unlock()

	// every outstanding call holds one slot until it is resolved
	err := c.slots.Acquire(ctx, c.limit)
	if err == nil {
		defer c.slots.Release(c.limit)
	}
	c.Close()
	return err
}

// Close fails all outstanding calls with a closed error and closes the connection.
// Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.closing.Store(true)
	c.fail(common.NewClosedError("close", nil))
	<-c.loopDone
	return nil
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// State returns the current state of the engine
func (c *Client) State() common.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Terminal(), c.state == common.StateClosing:
		return c.state
	case c.waiting > 0:
		return common.StateAwaitingCapacity
	case c.corr.len() > 0:
		return common.StateActive
	default:
		return common.StateIdle
	}
}

// Pending returns the number of outstanding calls (abandoned calls included)
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.corr.len()
}

// Err returns the terminal error or nil while the engine is usable
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Mode returns the correlation mode of the engine
func (c *Client) Mode() common.Mode { return c.mode }

// Done is signaled once the engine reached a terminal state
func (c *Client) Done() syncx.DoneChanR { return c.done.R() }

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// admit returns an error if no new call may be issued
func (c *Client) admit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.shutdown {
		return common.NewClosedError("call", errShutdown)
	}
	return nil
}

// acquire takes one capacity slot. Waiting is aborted when the engine terminates.
func (c *Client) acquire(ctx context.Context) error {
	if c.slots.TryAcquire(1) {
		c.held.Add(1)
		return nil
	}

	c.mu.Lock()
	c.waiting++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.waiting--
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
		cancel()
	}()

	if err := c.slots.Acquire(ctx, 1); err != nil {
		if termErr := c.Err(); termErr != nil {
			return termErr
		}
		return err
	}
	c.held.Add(1)
	return nil
}

// release returns a slot taken by acquire
func (c *Client) release() {
	c.held.Add(-1)
	c.slots.Release(1)
}

// dispatch registers p and writes req.
// Once p is registered dispatch returns nil and the outcome is delivered through p.
func (c *Client) dispatch(req *common.Message, p *pendingCall) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	// registration and the write happen in one critical section of the write lock,
	// the table lock is only held for the registration
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	req.MsgType = common.MsgTRequest
	if err := c.corr.register(req, p); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("register call: %w", err)
	}
	c.mu.Unlock()
	common.RecordCallStarted()

	err := c.ft.Send(req)
	if err == nil {
		err = c.ft.Flush()
	}
	if err == nil {
		return nil
	}

	// a codec error means the request never reached the wire, the connection stays usable
	if common.KindOf(err) == common.KindCodec {
		c.mu.Lock()
		removed := c.corr.unregister(p)
		c.mu.Unlock()
		if removed {
			c.resolve(p, nil, err)
		}
		return nil
	}

	c.fail(err)
	return nil
}

// resolve delivers the result of p and frees its capacity slot.
// It is called exactly once per call by the goroutine that removed p from the correlator.
func (c *Client) resolve(p *pendingCall, msg *common.Message, err error) {
	p.done <- callResult{msg: msg, err: err}
	common.RecordCallFinished(p.start, err)
	c.release()
}

// readLoop reads all incoming frames and resolves the pending calls
func (c *Client) readLoop() {
	defer close(c.loopDone)

	for msg, err := range c.ft.Frames() {
		if err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		p, err := c.corr.match(msg)
		c.mu.Unlock()
		if err != nil {
			Logger.Errorf("closing %s connection: %v", c.mode, err)
			c.fail(err)
			return
		}

		if msg.MsgType == common.MsgTError {
			c.resolve(p, nil, common.NewHandlerError("call", msg.Err))
		} else {
			c.resolve(p, msg, nil)
		}
	}

	// the peer closed the connection at a frame boundary
	c.fail(io.EOF)
}

// fail moves the engine into its terminal state and resolves all outstanding calls.
// Only the first call has an effect.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}

	var termErr error
	switch {
	case c.closing.Load():
		c.state = common.StateClosed
		termErr = common.NewClosedError("close", nil)
	case cause == io.EOF:
		c.state = common.StateClosed
		termErr = common.NewClosedError("read", io.EOF)
	case common.KindOf(cause) == common.KindClosed:
		c.state = common.StateClosed
		termErr = cause
	default:
		c.state = common.StateFailed
		termErr = cause
	}
	c.err = termErr
	failed := c.state == common.StateFailed
	calls := c.corr.drain()
	c.mu.Unlock()

	if failed {
		Logger.Warningf("%s connection failed, failing %d pending calls: %v", c.mode, len(calls), cause)
		common.RecordConnectionFailure("client", common.KindOf(cause))
	}

	for _, p := range calls {
		c.resolve(p, nil, termErr)
	}

	_ = c.ft.Close()
	c.doneOnce.Do(c.done.SetDone)
}
