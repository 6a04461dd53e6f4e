package base

import (
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"io"
	"net"
	"reflect"
	"testing"
)

// pipeTransports returns two frame transports connected by a net.Pipe
func pipeTransports(t *testing.T, config common.EngineConfig) (a, b *frameTransport, rawB net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	ser := serializer.NewBinarySerializer()
	a = NewFrameTransport(c1, ser, config).(*frameTransport)
	b = NewFrameTransport(c2, ser, config).(*frameTransport)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b, c2
}

func TestFrameTransportRoundTrip(t *testing.T) {
	for name, factory := range map[string]func() serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer,
		"json":   serializer.NewJSONSerializer,
		"gob":    serializer.NewGOBSerializer,
	} {
		t.Run(name, func(t *testing.T) {
			c1, c2 := net.Pipe()
			a := NewFrameTransport(c1, factory(), common.EngineConfig{})
			b := NewFrameTransport(c2, factory(), common.EngineConfig{})
			defer a.Close()
			defer b.Close()

			msgs := []*common.Message{
				{MsgType: common.MsgTRequest, Tag: 1, Method: "echo", Value: []byte("1")},
				{MsgType: common.MsgTRequest, Tag: 2, Method: "echo", Value: []byte("2")},
				{MsgType: common.MsgTError, Tag: 3, Err: "boom"},
			}

			errCh := make(chan error, 1)
			go func() {
				for _, m := range msgs {
					if err := a.Send(m); err != nil {
						errCh <- err
						return
					}
				}
				errCh <- a.Flush()
			}()

			for i, want := range msgs {
				got, err := b.Receive()
				if err != nil {
					t.Fatalf("Receive %d failed: %v", i, err)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("frame %d: expected %+v, got %+v", i, want, got)
				}
			}
			if err := <-errCh; err != nil {
				t.Fatalf("Send failed: %v", err)
			}
		})
	}
}

func TestFrameTransportEOF(t *testing.T) {
	a, b, _ := pipeTransports(t, common.EngineConfig{})
	_ = a.Close()

	if _, err := b.Receive(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameTransportReadErrors(t *testing.T) {
	header := func(n uint32) []byte {
		h := make([]byte, 4)
		binary.BigEndian.PutUint32(h, n)
		return h
	}

	testCases := []struct {
		name string
		raw  []byte
		kind common.ErrorKind
	}{
		{
			name: "Truncated header",
			raw:  []byte{0, 0},
			kind: common.KindTransport,
		},
		{
			name: "Truncated payload",
			raw:  append(header(10), 1, 2, 3),
			kind: common.KindTransport,
		},
		{
			name: "Oversized frame",
			raw:  header(1 << 20),
			kind: common.KindCodec,
		},
		{
			name: "Corrupt payload",
			raw:  append(header(3), 1, 0x80, 0),
			kind: common.KindCodec,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c1, c2 := net.Pipe()
			b := NewFrameTransport(c2, serializer.NewBinarySerializer(), common.EngineConfig{MaxFrameSize: 1024})
			defer b.Close()

			go func() {
				_, _ = c1.Write(tc.raw)
				_ = c1.Close()
			}()

			_, err := b.Receive()
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := common.KindOf(err); kind != tc.kind {
				t.Errorf("expected %s, got %s (%v)", tc.kind, kind, err)
			}
		})
	}
}

func TestFrameTransportSendTooLarge(t *testing.T) {
	a, _, _ := pipeTransports(t, common.EngineConfig{MaxFrameSize: 16})

	err := a.Send(&common.Message{MsgType: common.MsgTRequest, Value: make([]byte, 64)})
	if common.KindOf(err) != common.KindCodec {
		t.Fatalf("expected codec error, got %v", err)
	}
	if a.w.Buffered() != 0 {
		t.Errorf("rejected frame left %d bytes in the write buffer", a.w.Buffered())
	}
}

func TestFramesSequence(t *testing.T) {
	a, b, _ := pipeTransports(t, common.EngineConfig{})

	go func() {
		for i := 0; i < 3; i++ {
			_ = a.Send(&common.Message{MsgType: common.MsgTResponse, Tag: uint32(i + 1)})
		}
		_ = a.Flush()
		_ = a.Close()
	}()

	var tags []uint32
	for msg, err := range b.Frames() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tags = append(tags, msg.Tag)
	}
	if !reflect.DeepEqual(tags, []uint32{1, 2, 3}) {
		t.Errorf("expected tags [1 2 3], got %v", tags)
	}

	// the sequence is not restartable
	for _, err := range b.Frames() {
		if !errors.Is(err, ErrFramesConsumed) {
			t.Errorf("expected ErrFramesConsumed, got %v", err)
		}
	}
}
