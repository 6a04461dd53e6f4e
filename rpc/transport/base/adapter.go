package base

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"io"
	"iter"
	"sync"
	"sync/atomic"
)

// ErrFramesConsumed is yielded by Frames if the sequence was already consumed
var ErrFramesConsumed = errors.New("frame sequence already consumed")

// frameTransport implements transport.IFrameTransport on top of any io.ReadWriteCloser
type frameTransport struct {
	conn       io.ReadWriteCloser
	serializer serializer.IRPCSerializer
	maxFrame   uint32

	r       *bufio.Reader
	rHeader [frameHeaderSize]byte

	w       *bufio.Writer
	wHeader [frameHeaderSize]byte

	consumed  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewFrameTransport wraps conn into a frame transport.
// The payload of every frame is produced and parsed by ser.
func NewFrameTransport(conn io.ReadWriteCloser, ser serializer.IRPCSerializer, config common.EngineConfig) transport.IFrameTransport {
	config = config.WithDefaults()
	return &frameTransport{
		conn:       conn,
		serializer: ser,
		maxFrame:   config.MaxFrameSize,
		r:          bufio.NewReaderSize(conn, config.BufferSize),
		w:          bufio.NewWriterSize(conn, config.BufferSize),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IFrameTransport)
// --------------------------------------------------------------------------

func (t *frameTransport) Send(msg *common.Message) error {
	payload, err := t.serializer.Serialize(*msg)
	if err != nil {
		return common.NewCodecError("encode", err)
	}
	if uint64(len(payload)) > uint64(t.maxFrame) {
		return common.NewCodecError("encode", fmt.Errorf("%w: %d bytes (limit %d)", errFrameTooLarge, len(payload), t.maxFrame))
	}

	if err := writeFrame(t.w, t.wHeader[:], payload); err != nil {
		return common.NewTransportError("write", err)
	}
	common.RecordFrameSent(len(payload))
	return nil
}

func (t *frameTransport) Flush() error {
	if err := t.w.Flush(); err != nil {
		return common.NewTransportError("flush", err)
	}
	return nil
}

func (t *frameTransport) Receive() (*common.Message, error) {
	payload, err := readFrame(t.r, t.rHeader[:], t.maxFrame)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case errors.Is(err, errFrameTooLarge):
		return nil, common.NewCodecError("decode", err)
	case err != nil:
		return nil, common.NewTransportError("read", err)
	}
	common.RecordFrameReceived(len(payload))

	msg := &common.Message{}
	if err := t.serializer.Deserialize(payload, msg); err != nil {
		return nil, common.NewCodecError("decode", err)
	}
	return msg, nil
}

func (t *frameTransport) Frames() iter.Seq2[*common.Message, error] {
	return func(yield func(*common.Message, error) bool) {
		if t.consumed.Swap(true) {
			yield(nil, ErrFramesConsumed)
			return
		}
		for {
			msg, err := t.Receive()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (t *frameTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
