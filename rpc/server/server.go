package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger(common.LoggerServer)

// Names of the built-in services
const (
	MethodEcho  = "echo"
	MethodDelay = "delay"
)

// defaultMaxDelay is used by the delay service if no upper bound is configured
const defaultMaxDelay = 10 * time.Millisecond

// NewRPCServer creates a new RPC server
// It takes a config and a transport as parameters
// The echo and delay services are registered by default
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(serializer.NewBinarySerializer()),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	maxDelay := time.Duration(config.MaxDelayMillisecond) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	s := &RPCServer{
		config:    config,
		transport: transport,
		adapters:  xsync.NewMapOf[string, IRPCServerAdapter](),
		timeout:   time.Duration(config.TimeoutSecond) * time.Second,
	}
	s.RegisterAdapter(MethodEcho, NewEchoServerAdapter())
	s.RegisterAdapter(MethodDelay, NewDelayServerAdapter(maxDelay))

	return s
}

// RPCServer routes requests to adapters by method name
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	adapters  *xsync.MapOf[string, IRPCServerAdapter]
	timeout   time.Duration
	metrics   *http.Server
}

// RegisterAdapter registers (or replaces) the adapter serving method
func (s *RPCServer) RegisterAdapter(method string, adapter IRPCServerAdapter) {
	s.adapters.Store(method, adapter)
}

// handle routes one request to its adapter
func (s *RPCServer) handle(ctx context.Context, req *common.Message) (*common.Message, error) {
	adapter, ok := s.adapters.Load(req.Method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return adapter.Handle(ctx, req)
}

// startMetrics serves the engine metrics in prometheus text format
func (s *RPCServer) startMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteMetrics(w)
	})
	s.metrics = &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", s.config.MetricsEndpoint)
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}

// Serve starts the RPC server
// This function will also initialize the loggers, the metrics endpoint and start the transport layer
// It blocks until Close is called
func (s *RPCServer) Serve() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if s.config.MetricsEndpoint != "" {
		s.startMetrics()
	}

	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config)
}

// Close stops the transport and the metrics endpoint
func (s *RPCServer) Close() error {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.metrics.Shutdown(ctx)
	}
	return s.transport.Close()
}
