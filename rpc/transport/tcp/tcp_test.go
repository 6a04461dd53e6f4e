package tcp

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"net"
	"sync"
	"testing"
)

// freeEndpoint returns a loopback address that was free a moment ago
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestUpgrade(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	err = upgrade(conn,
		common.SocketConf{ReadBufferSize: 64 * 1024, WriteBufferSize: 64 * 1024},
		common.TCPConf{TCPNoDelay: true, TCPKeepAliveSec: 30, TCPLingerSec: 1})
	if err != nil {
		t.Errorf("upgrade failed: %v", err)
	}

	// non tcp connections are left alone
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if err := upgrade(a, common.SocketConf{}, common.TCPConf{TCPNoDelay: true}); err != nil {
		t.Errorf("upgrade of a pipe failed: %v", err)
	}
}

func TestClientServer(t *testing.T) {
	for _, mode := range []common.Mode{common.ModeMultiplex, common.ModePipeline} {
		t.Run(string(mode), func(t *testing.T) {
			endpoint := freeEndpoint(t)
			engine := common.EngineConfig{Mode: mode}

			srv := NewTCPServerTransport(serializer.NewBinarySerializer())
			srv.RegisterHandler(func(_ context.Context, req *common.Message) (*common.Message, error) {
				return common.NewResponse(req, append([]byte(req.Method+":"), req.Value...)), nil
			})
			served := make(chan error, 1)
			go func() {
				served <- srv.Listen(common.ServerConfig{
					Engine:    engine,
					Transport: common.ServerTransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPNoDelay: true}},
				})
			}()
			defer func() {
				_ = srv.Close()
				if err := <-served; err != nil {
					t.Errorf("Listen failed: %v", err)
				}
			}()

			cli := NewTCPClientTransport(serializer.NewBinarySerializer())
			err := cli.Connect(common.ClientConfig{
				Engine:    engine,
				Transport: common.ClientTransportConfig{Endpoint: endpoint, RetryCount: 8, TCPConf: common.TCPConf{TCPNoDelay: true}},
			})
			if err != nil {
				t.Fatal(err)
			}
			defer cli.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp, err := cli.Call(context.Background(), common.NewRequest("echo", []byte("tcp")))
					if err != nil {
						t.Error(err)
						return
					}
					if string(resp.Value) != "echo:tcp" {
						t.Errorf("unexpected response %q", resp.Value)
					}
				}()
			}
			wg.Wait()
		})
	}
}
