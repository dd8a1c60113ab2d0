package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeq indicates a sequence number out of range.
	ErrInvalidSeq = errors.New("invalid sequence number")
	// ErrChecksum indicates a frame failed the checksum.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrTruncated indicates the line went idle in the middle of a frame.
	ErrTruncated = errors.New("truncated frame")
)

// LengthError indicates the data length exceeds MaxDataLen.
type LengthError struct {
	Len int
}

// Error implements error.
func (e *LengthError) Error() string {
	return fmt.Sprintf("data length %d exceeds %d", e.Len, MaxDataLen)
}
