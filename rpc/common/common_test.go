package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		fatal  bool
		closed bool
	}{
		{"transport", NewTransportError("read", io.ErrUnexpectedEOF), KindTransport, true, false},
		{"codec", NewCodecError("decode", errors.New("bad frame")), KindCodec, true, false},
		{"protocol", NewProtocolError("match", "unknown tag %d", 7), KindProtocol, true, false},
		{"handler", NewHandlerError("call", "boom"), KindHandler, false, false},
		{"closed", NewClosedError("call", nil), KindClosed, false, true},
		{"wrapped", fmt.Errorf("outer: %w", NewProtocolError("match", "x")), KindProtocol, true, false},
		{"plain", errors.New("plain"), KindUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %s, want %s", got, tt.kind)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			if got := errors.Is(tt.err, ErrClosed); got != tt.closed {
				t.Errorf("errors.Is(err, ErrClosed) = %v, want %v", got, tt.closed)
			}
		})
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := NewTransportError("read", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected transport error to unwrap to io.ErrUnexpectedEOF")
	}
	if !strings.Contains(err.Error(), "transport error") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestMessageFactories(t *testing.T) {
	req := NewRequest("echo", []byte("hi"))
	req.Tag = 9

	resp := NewResponse(req, req.Value)
	if resp.Tag != 9 || resp.MsgType != MsgTResponse || !resp.IsResponse() {
		t.Errorf("Unexpected response %+v", resp)
	}

	failed := NewErrorResponse(req, errors.New("nope"))
	if failed.Tag != 9 || failed.MsgType != MsgTError || failed.Err != "nope" || !failed.IsResponse() {
		t.Errorf("Unexpected error response %+v", failed)
	}

	if req.IsResponse() {
		t.Error("A request is not a response")
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for _, mt := range []MessageType{MsgTRequest, MsgTResponse, MsgTError} {
		data, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", mt, err)
		}
		var got MessageType
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}
		if got != mt {
			t.Errorf("Expected %s, got %s", mt, got)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"bogus"`), &mt); err == nil {
		t.Error("Expected error for unknown message type")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"multiplex", ModeMultiplex, false},
		{" Pipeline ", ModePipeline, false},
		{"fifo", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	c := EngineConfig{}.WithDefaults()
	if c.Mode != ModeMultiplex || c.MaxPending != DefaultMaxPending ||
		c.MaxFrameSize != DefaultMaxFrameSize || c.BufferSize != DefaultBufferSize {
		t.Errorf("Unexpected defaults %+v", c)
	}

	s := EngineConfig{Mode: ModePipeline}.WithServerDefaults()
	if s.Mode != ModePipeline || s.MaxPending != DefaultMaxWorkersPerConn {
		t.Errorf("Unexpected server defaults %+v", s)
	}
}

func TestConfigString(t *testing.T) {
	server := &ServerConfig{
		Transport: ServerTransportConfig{Endpoint: "localhost:9000"},
		LogLevel:  "debug",
	}
	out := server.String()
	for _, want := range []string{"RPC SERVER", "localhost:9000", "multiplex", "debug", "disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("ServerConfig.String() misses %q:\n%s", want, out)
		}
	}

	client := &ClientConfig{
		RequestsPerSecond: 10,
		Engine:            EngineConfig{Mode: ModePipeline},
		Transport:         ClientTransportConfig{Endpoint: "/tmp/dmux.sock", RetryCount: 3},
	}
	out = client.String()
	for _, want := range []string{"/tmp/dmux.sock", "pipeline", "10.0 req/sec", "1024"} {
		if !strings.Contains(out, want) {
			t.Errorf("ClientConfig.String() misses %q:\n%s", want, out)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("ParseLogLevel(%q) failed: %v", level, err)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("Expected error for invalid log level")
	}
}
