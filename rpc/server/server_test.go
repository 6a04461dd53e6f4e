package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/client"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/ValentinKolb/dMux/rpc/transport/unix"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

type blockingAdapter struct{}

func (blockingAdapter) Handle(ctx context.Context, _ *common.Message) (*common.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingAdapter struct{}

func (failingAdapter) Handle(context.Context, *common.Message) (*common.Message, error) {
	return nil, errors.New("boom")
}

// nopTransport is a server transport that is never started
type nopTransport struct{}

func (nopTransport) RegisterHandler(transport.HandleFunc) {}
func (nopTransport) Listen(common.ServerConfig) error   { return nil }
func (nopTransport) Close() error                       { return nil }

func TestHandleRouting(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{TimeoutSecond: 1, MaxDelayMillisecond: 5}, nopTransport{})
	s.RegisterAdapter("block", blockingAdapter{})
	s.RegisterAdapter("fail", failingAdapter{})

	testCases := []struct {
		method  string
		wantErr error
	}{
		{method: MethodEcho},
		{method: MethodDelay},
		{method: "fail", wantErr: errors.New("boom")},
		{method: "block", wantErr: context.DeadlineExceeded},
		{method: "missing", wantErr: errors.New(`unknown method "missing"`)},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			req := common.NewRequest(tc.method, []byte("payload"))
			resp, err := s.handle(context.Background(), req)

			if tc.wantErr != nil {
				if err == nil || err.Error() != tc.wantErr.Error() {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(resp.Value) != "payload" || resp.MsgType != common.MsgTResponse {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestDelayAdapterCancel(t *testing.T) {
	adapter := NewDelayServerAdapter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := adapter.Handle(ctx, common.NewRequest(MethodDelay, nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled, got %v", err)
	}
}

// startUnixServer runs a server on a unix socket in a temporary directory
func startUnixServer(t *testing.T, mode common.Mode, ser serializer.IRPCSerializer) string {
	t.Helper()
	endpoint := filepath.Join(t.TempDir(), "dmux.sock")

	s := NewRPCServer(common.ServerConfig{
		TimeoutSecond:       5,
		MaxDelayMillisecond: 5,
		Engine:              common.EngineConfig{Mode: mode},
		Transport:           common.ServerTransportConfig{Endpoint: endpoint},
		LogLevel:            "warn",
	}, unix.NewUnixServerTransport(ser))

	served := make(chan error, 1)
	go func() { served <- s.Serve() }()
	t.Cleanup(func() {
		_ = s.Close()
		if err := <-served; err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	})
	return endpoint
}

func newUnixClient(t *testing.T, endpoint string, mode common.Mode, ser serializer.IRPCSerializer) *client.RPCClient {
	t.Helper()
	c, err := client.NewRPCClient(common.ClientConfig{
		TimeoutSecond: 5,
		Engine:        common.EngineConfig{Mode: mode},
		Transport:     common.ClientTransportConfig{Endpoint: endpoint, RetryCount: 8},
	}, unix.NewUnixClientTransport(ser))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEndToEnd(t *testing.T) {
	for _, mode := range []common.Mode{common.ModeMultiplex, common.ModePipeline} {
		for _, serName := range []string{"binary", "json", "gob"} {
			t.Run(fmt.Sprintf("%s/%s", mode, serName), func(t *testing.T) {
				ser, err := serializer.FromName(serName)
				if err != nil {
					t.Fatal(err)
				}
				endpoint := startUnixServer(t, mode, ser)
				c := newUnixClient(t, endpoint, mode, ser)
				ctx := context.Background()

				if err := c.Ready(ctx); err != nil {
					t.Fatal(err)
				}

				// concurrent calls on the delay service complete out of order
				var wg sync.WaitGroup
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						want := strconv.Itoa(i)
						got, err := c.Delay(ctx, []byte(want))
						if err != nil {
							t.Error(err)
							return
						}
						if string(got) != want {
							t.Errorf("call %s got %s", want, got)
						}
					}(i)
				}
				wg.Wait()

				_, err = c.Call(ctx, "missing", nil)
				if common.KindOf(err) != common.KindHandler {
					t.Errorf("expected handler error, got %v", err)
				}

				got, err := c.Echo(ctx, []byte("still usable"))
				if err != nil || string(got) != "still usable" {
					t.Errorf("connection unusable after handler error: %q, %v", got, err)
				}
			})
		}
	}
}
