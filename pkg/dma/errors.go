package dma

import "errors"

var (
	// ErrStopped indicates the channel has been stopped.
	ErrStopped = errors.New("dma channel stopped")
	// ErrEmptyChunk indicates a zero-length transmit chunk.
	ErrEmptyChunk = errors.New("empty chunk")
)
