package frame

import (
	"io"
	"time"
)

const (
	// Start marks the beginning of a frame.
	Start byte = 0xa5
	// MaxDataLen is the largest data length of a frame.
	MaxDataLen = 0x7f
)

// Seq defines the type of frame sequence number.
type Seq byte

// NewSeq creates a random sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next calculates the next sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	n := byte(s)
	return n > 0 && n < 0xf0
}

// Frame is a decoded frame.
type Frame struct {
	Seq  Seq
	Code byte
	Data []byte
}

// Validate checks the frame can be encoded.
func (f *Frame) Validate() error {
	if !f.Seq.IsValid() {
		return ErrInvalidSeq
	}
	if len(f.Data) > MaxDataLen {
		return &LengthError{Len: len(f.Data)}
	}
	return nil
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	l := len(f.Data)
	b := make([]byte, 0, l+5)
	b = append(b, Start, byte(f.Seq))
	if code := f.Code & 0x8f; l >= 7 {
		b = append(b, code|0x70, byte(l))
	} else {
		b = append(b, code|byte(l)<<4)
	}
	b = append(b, f.Data...)
	var sum byte
	for _, c := range b[1:] {
		sum ^= c
	}
	return append(b, sum)
}

// WriteTo implements io.WriterTo.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}
