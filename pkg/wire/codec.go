package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Protocol limits. A peer exceeding them is disconnected.
const (
	// MaxStringLen is the largest encodable string (uint16 length prefix).
	MaxStringLen = 1<<16 - 1

	// MaxValueLen limits a single value payload (16 MiB).
	MaxValueLen = 16 << 20

	// MaxBatchLen limits the number of entries in multiput/multiget.
	MaxBatchLen = 4096
)

var (
	ErrProtocol      = errors.New("wire: protocol error")
	ErrLimitExceeded = errors.New("wire: limit exceeded")
)

// ReadString reads a length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", unexpectedEOF(err)
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrProtocol)
	}
	return string(buf), nil
}

// ReadInt reads a big-endian int32.
func ReadInt(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// ReadCount reads a batch size and checks it against MaxBatchLen.
func ReadCount(r io.Reader) (int, error) {
	n, err := ReadInt(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrProtocol, n)
	}
	if n > MaxBatchLen {
		return 0, fmt.Errorf("%w: count %d exceeds limit %d", ErrLimitExceeded, n, MaxBatchLen)
	}
	return int(n), nil
}

// ReadBytes reads a length-prefixed payload. Absent markers are rejected.
// An empty payload is returned as a non-nil empty slice.
func ReadBytes(r io.Reader) ([]byte, error) {
	b, ok, err := ReadOptionalBytes(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: unexpected absent value", ErrProtocol)
	}
	return b, nil
}

// ReadOptionalBytes reads a length-prefixed payload that may be absent.
func ReadOptionalBytes(r io.Reader) ([]byte, bool, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, false, err
	}
	switch {
	case n == -1:
		return nil, false, nil
	case n < 0:
		return nil, false, fmt.Errorf("%w: invalid payload length %d", ErrProtocol, n)
	case n > MaxValueLen:
		return nil, false, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrLimitExceeded, n, MaxValueLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false, unexpectedEOF(err)
	}
	return buf, true, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Frame accumulates the fields of one message. The first encoding error
// sticks and is reported by Err and WriteTo.
type Frame struct {
	buf bytes.Buffer
	err error
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// String appends a string field.
func (f *Frame) String(s string) *Frame {
	if f.err != nil {
		return f
	}
	if len(s) > MaxStringLen {
		f.err = fmt.Errorf("%w: string length %d exceeds limit %d", ErrLimitExceeded, len(s), MaxStringLen)
		return f
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(s)))
	f.buf.Write(hdr[:])
	f.buf.WriteString(s)
	return f
}

// Int appends an int32 field.
func (f *Frame) Int(n int32) *Frame {
	if f.err != nil {
		return f
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	f.buf.Write(buf[:])
	return f
}

// Bytes appends a length-prefixed payload.
func (f *Frame) Bytes(b []byte) *Frame {
	if f.err != nil {
		return f
	}
	if len(b) > MaxValueLen {
		f.err = fmt.Errorf("%w: payload length %d exceeds limit %d", ErrLimitExceeded, len(b), MaxValueLen)
		return f
	}
	f.Int(int32(len(b)))
	f.buf.Write(b)
	return f
}

// Absent appends the absent-value marker.
func (f *Frame) Absent() *Frame {
	return f.Int(-1)
}

// Err returns the first encoding error, if any.
func (f *Frame) Err() error {
	return f.err
}

// Len returns the encoded size in bytes.
func (f *Frame) Len() int {
	return f.buf.Len()
}

// WriteTo writes the encoded frame to w in a single Write call.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write(f.buf.Bytes())
	return int64(n), err
}
