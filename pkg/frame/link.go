package frame

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Handler is called when a frame is received.
type Handler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of Handler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements Handler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// DefaultTimeout is the default inter-byte gap dropping a partial frame.
const DefaultTimeout = 50 * time.Millisecond

// Link sends and receives frames over a stream.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    Handler
	Timeout    time.Duration

	sendLock sync.Mutex
	seq      Seq

	parseLock sync.Mutex
	parser    Parser
	idleTimer <-chan time.Time
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter: rw,
		Timeout:    DefaultTimeout,
		seq:        NewSeq(),
	}
}

// Send encodes and writes a frame with the next sequence number.
func (l *Link) Send(code byte, data []byte) (*Frame, error) {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	f := &Frame{Seq: l.seq, Code: code, Data: data}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := f.WriteTo(l.ReadWriter); err != nil {
		return nil, err
	}
	l.seq = l.seq.Next()
	return f, nil
}

// Stats returns the receiver counters.
func (l *Link) Stats() Stats {
	l.parseLock.Lock()
	defer l.parseLock.Unlock()
	return l.parser.Stats()
}

// Run receives frames until ctx is done or the stream fails. The end of
// the stream is not an error.
func (l *Link) Run(ctx context.Context) error {
	l.parseLock.Lock()
	l.parser.Reset()
	l.parseLock.Unlock()

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			var r Result
			for _, b := range chunk {
				r = l.parse(b)
				l.deliver(ctx, r)
			}
			l.updateTimer(r)
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-l.idleTimer:
			l.idleTimer = nil
			l.parseLock.Lock()
			r := l.parser.Idle()
			l.parseLock.Unlock()
			l.deliver(ctx, r)
			l.updateTimer(r)
		}
	}
}

func (l *Link) parse(b byte) Result {
	l.parseLock.Lock()
	defer l.parseLock.Unlock()
	return l.parser.Parse(b)
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, 256)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (l *Link) updateTimer(r Result) {
	switch r.WhatAboutTimer() {
	case TimerRestart:
		timeout := l.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		l.idleTimer = time.After(timeout)
	case TimerStop:
		l.idleTimer = nil
	}
}

func (l *Link) deliver(ctx context.Context, r Result) {
	if r.Err != nil {
		glog.V(2).Infof("frame: %v, dropped %d bytes", r.Err, r.Dropped)
	}
	if r.Frame != nil {
		if h := l.Handler; h != nil {
			h.HandleFrame(ctx, r.Frame)
		}
	}
}
