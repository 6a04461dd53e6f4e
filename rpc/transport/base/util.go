package base

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// frameHeaderSize is the size of the length prefix of every frame
const frameHeaderSize = 4

// errFrameTooLarge is wrapped by codec errors for frames above the size limit
var errFrameTooLarge = errors.New("frame too large")

// writeFrame writes a frame into the buffered writer with the format:
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
func writeFrame(w *bufio.Writer, header []byte, payload []byte) error {
	binary.BigEndian.PutUint32(header[:frameHeaderSize], uint32(len(payload)))
	if _, err := w.Write(header[:frameHeaderSize]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads the next frame using header as scratch space for the length prefix.
//
// It returns io.EOF only if the stream ended exactly at a frame boundary. A stream
// that ends inside a frame yields io.ErrUnexpectedEOF. A length above maxSize
// yields errFrameTooLarge, the payload is not consumed in that case.
func readFrame(r *bufio.Reader, header []byte, maxSize uint32) ([]byte, error) {
	if _, err := io.ReadFull(r, header[:frameHeaderSize]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:frameHeaderSize])
	if length > maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", errFrameTooLarge, length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// backoff returns the n-th (0 based) exponential backoff duration starting at
// base with a small random jitter (+-10%)
func backoff(base time.Duration, n int) time.Duration {
	d := base << n
	jitter := float64(d) * (0.9 + 0.2*rand.Float64())
	return time.Duration(jitter)
}
