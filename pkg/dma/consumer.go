package dma

import (
	"context"
	"io"
)

// Consumer is the polling-side handle of a Ring. It owns tail and never
// writes head.
type Consumer struct {
	r *Ring
}

// Available returns the bytes between tail and head, in [0, 2*capacity).
func (c *Consumer) Available() int {
	r := c.r
	return int(r.available(r.head.Load(), r.tail.Load()))
}

// TryRead copies up to len(p) exposed bytes and advances tail. It never
// blocks; 0 means no data now.
func (c *Consumer) TryRead(p []byte) int {
	r := c.r
	head, tail := r.head.Load(), r.tail.Load()
	n := r.available(head, tail)
	if uint32(len(p)) < n {
		n = uint32(len(p))
	}
	if n == 0 {
		return 0
	}
	r.copyOut(p[:n], tail)
	r.tail.Store((tail + n) % r.size)
	r.stats.consumed.Add(uint64(n))
	return int(n)
}

// Discard drops up to n exposed bytes and returns how many were dropped.
func (c *Consumer) Discard(n int) int {
	r := c.r
	head, tail := r.head.Load(), r.tail.Load()
	avail := int(r.available(head, tail))
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	r.tail.Store((tail + uint32(n)) % r.size)
	r.stats.consumed.Add(uint64(n))
	return n
}

// copyOut copies len(p) bytes starting at logical position pos. The window
// may cross the half boundary and the wrap boundary.
func (r *Ring) copyOut(p []byte, pos uint32) {
	for len(p) > 0 {
		half := &r.half[pos/r.capacity]
		k := copy(p, half.buf[pos%r.capacity:])
		p = p[k:]
		pos = (pos + uint32(k)) % r.size
	}
}

// Readable returns a coalesced notification sent when head advances or the
// ring stops. Callers must re-check state after waking.
func (c *Consumer) Readable() <-chan struct{} {
	return c.r.notify
}

// WaitReadable blocks until data is available, the ring stops or ctx is done.
func (c *Consumer) WaitReadable(ctx context.Context) error {
	for {
		if c.Available() > 0 {
			return nil
		}
		if c.r.Stopped() {
			return ErrStopped
		}
		select {
		case <-c.r.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadContext blocks until at least one byte is available, then reads up
// to len(p).
func (c *Consumer) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := c.TryRead(p); n > 0 {
			return n, nil
		}
		if err := c.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// Read implements io.Reader. It blocks until data is available and returns
// io.EOF once the ring is stopped and drained.
func (c *Consumer) Read(p []byte) (int, error) {
	n, err := c.ReadContext(context.Background(), p)
	if err == ErrStopped {
		err = io.EOF
	}
	return n, err
}
