package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/lib/queue"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/someonegg/gox/syncx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"sync"
	"sync/atomic"
	"time"
)

// errServing is returned if Serve is called on an engine that already served
var errServing = errors.New("serve: engine already started")

// response is a finished request waiting to be written
type response struct {
	seq uint64 // position of the request on the connection
	req *common.Message
	msg *common.Message
}

// Server is the server engine of one connection.
//
// One goroutine reads requests and starts a handler goroutine for each of them (at
// most EngineConfig.MaxPending at once). Finished responses are handed to a single
// writer goroutine through a lock-free queue. NewServer starts no goroutine, an
// engine that is never served needs no cleanup besides closing its transport. In multiplex mode the writer sends
// responses as soon as they are finished, in pipeline mode it restores request order.
type Server struct {
	ft       transport.IFrameTransport
	handler  transport.HandleFunc
	mode     common.Mode
	workers  *semaphore.Weighted
	inflight *xsync.MapOf[uint32, struct{}] // tags of running requests (multiplex only)
	out      *queue.MPSC[response]
	running  atomic.Int64

	mu      sync.Mutex
	state   common.ConnState // only Draining, Closing and the terminal states are stored
	err     error
	cause   error // first fatal error, recorded before the connection is closed
	serving bool

	closing  atomic.Bool
	done     syncx.DoneChan
	doneOnce sync.Once
}

// NewServer creates a server engine for ft. Call Serve to start it.
func NewServer(ft transport.IFrameTransport, handler transport.HandleFunc, config common.EngineConfig) *Server {
	config = config.WithServerDefaults()
	return &Server{
		ft:       ft,
		handler:  handler,
		mode:     config.Mode,
		workers:  semaphore.NewWeighted(int64(config.MaxPending)),
		inflight: xsync.NewMapOf[uint32, struct{}](),
		out:      queue.NewMPSC[response](),
		state:    common.StateListening,
		done:     syncx.NewDoneChan(),
	}
}

// Serve processes requests until the peer closes the connection, a fatal error occurs,
// Close is called or ctx ends. It returns nil unless the connection failed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.serving || s.state == common.StateClosing || s.state.Terminal() {
		s.mu.Unlock()
		return errServing
	}
	s.serving = true
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(s.writeLoop)
	_ = g.Wait()

	return s.finish(s.firstCause())
}

// Close closes the connection. Running handlers are cancelled, Serve returns nil.
// Calling Close more than once is a no-op.
func (s *Server) Close() error {
	if s.closing.Swap(true) {
		return nil
	}

	s.mu.Lock()
	serving := s.serving
	if !s.state.Terminal() {
		s.state = common.StateClosing
	}
	s.mu.Unlock()

	err := s.ft.Close()
	if !serving {
		s.out.Close()
		s.finish(nil)
	}
	return err
}

// State returns the current state of the engine
func (s *Server) State() common.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state != common.StateListening:
		return s.state
	case s.running.Load() > 0:
		return common.StateDispatching
	default:
		return common.StateListening
	}
}

// Err returns the error that failed the engine
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is signaled once the engine reached a terminal state
func (s *Server) Done() syncx.DoneChanR { return s.done.R() }

// --------------------------------------------------------------------------
// Reading
// --------------------------------------------------------------------------

// readLoop reads requests and starts their handlers.
// Before it returns, all handlers have finished and the response queue is closed.
func (s *Server) readLoop(ctx context.Context) (err error) {
	hctx, cancel := context.WithCancel(ctx)
	var handlers sync.WaitGroup
	defer func() {
		if err != nil {
			s.fatal(err)
			cancel() // best effort, handlers may ignore their context
		}
		handlers.Wait()
		cancel()
		s.out.Close()
	}()

	var seq uint64
	for req, err := range s.ft.Frames() {
		if err != nil {
			return err
		}
		if req.MsgType != common.MsgTRequest {
			return common.NewProtocolError("read", "unexpected %s frame", req.MsgType)
		}
		if s.mode == common.ModeMultiplex {
			if _, loaded := s.inflight.LoadOrStore(req.Tag, struct{}{}); loaded {
				return common.NewProtocolError("read", "tag %d is already in flight", req.Tag)
			}
		}

		if err := s.workers.Acquire(hctx, 1); err != nil {
			return err
		}
		handlers.Add(1)
		go func(seq uint64, req *common.Message) {
			defer handlers.Done()
			s.out.Push(&response{seq: seq, req: req, msg: s.run(hctx, req)})
		}(seq, req)
		seq++
	}

	Logger.Debugf("peer closed %s connection, draining %d handlers", s.mode, s.running.Load())
	s.mu.Lock()
	if s.state == common.StateListening {
		s.state = common.StateDraining
	}
	s.mu.Unlock()
	return nil
}

// run calls the handler and turns its result into a response carrying the request tag
func (s *Server) run(ctx context.Context, req *common.Message) (resp *common.Message) {
	start := time.Now()
	s.running.Add(1)
	common.RecordHandlerStarted()

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("handler for method %q panicked: %v", req.Method, r)
			resp = common.NewErrorResponse(req, fmt.Errorf("handler panicked: %v", r))
		}
		s.running.Add(-1)
		common.RecordHandlerFinished(start, resp.MsgType == common.MsgTError)
	}()

	out, err := s.handler(ctx, req)
	switch {
	case err != nil:
		return common.NewErrorResponse(req, err)
	case out == nil:
		return common.NewErrorResponse(req, errors.New("handler returned no response"))
	}

	stamped := *out
	stamped.Tag = req.Tag
	stamped.Method = ""
	if stamped.MsgType != common.MsgTError {
		stamped.MsgType = common.MsgTResponse
	}
	return &stamped
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// writeLoop is the only goroutine writing to the connection.
// It keeps consuming the queue after a write error so no handler blocks.
func (s *Server) writeLoop() error {
	var werr error
	reorder := queue.NewReorder[*response]()

	write := func(r *response) {
		defer s.workers.Release(1)
		if werr != nil {
			return
		}
		if err := s.send(r); err != nil {
			werr = err
			s.fatal(err)
		}
	}

	emit := func(r *response) {
		if s.mode == common.ModePipeline {
			if !reorder.Add(r.seq, r) {
				Logger.Errorf("dropping response with duplicate sequence %d", r.seq)
				s.workers.Release(1)
				return
			}
			for _, next := range reorder.Ready() {
				write(next)
			}
			return
		}
		// the client may reuse the tag as soon as it sees the response
		s.inflight.Delete(r.req.Tag)
		write(r)
	}

	for {
		// batch everything that is already queued into one flush
		batched := 0
		for r, ok := s.out.Pop(); ok; r, ok = s.out.Pop() {
			emit(r)
			batched++
		}

		if batched > 0 && werr == nil {
			if err := s.ft.Flush(); err != nil {
				werr = err
				s.fatal(err)
			}
		}

		// the reader closes the queue after its last handler finished
		if s.out.IsClosed() {
			if s.out.Empty() {
				break
			}
			continue
		}
		<-s.out.Ready()
	}

	return werr
}

// send writes one response. A response that cannot be encoded is replaced by a failed one.
func (s *Server) send(r *response) error {
	err := s.ft.Send(r.msg)
	if common.KindOf(err) == common.KindCodec {
		Logger.Warningf("failed to encode response for method %q: %v", r.req.Method, err)
		err = s.ft.Send(common.NewErrorResponse(r.req, err))
	}
	return err
}

// fatal records the first fatal error and closes the connection,
// which unblocks the other loop
func (s *Server) fatal(err error) {
	s.mu.Lock()
	if s.cause == nil {
		s.cause = err
	}
	s.mu.Unlock()
	_ = s.ft.Close()
}

func (s *Server) firstCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// finish records the terminal state. Only the first call has an effect.
func (s *Server) finish(err error) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}

	if s.closing.Load() || err == nil {
		s.state = common.StateClosed
		err = nil
	} else {
		s.state = common.StateFailed
		s.err = err
	}
	s.mu.Unlock()

	if err != nil {
		Logger.Warningf("%s connection failed: %v", s.mode, err)
		common.RecordConnectionFailure("server", common.KindOf(err))
	}

	_ = s.ft.Close()
	s.doneOnce.Do(s.done.SetDone)
	return err
}
