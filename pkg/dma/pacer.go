package dma

import (
	"context"
	"runtime"
	"sync"

	"github.com/eapache/queue"
)

// Source supplies outbound bytes to a Pacer. Consumer implements it.
type Source interface {
	TryRead(p []byte) int
}

// SourceFunc is func type of Source.
type SourceFunc func(p []byte) int

// TryRead implements Source.
func (f SourceFunc) TryRead(p []byte) int {
	return f(p)
}

// PacerConfig configures a Pacer.
type PacerConfig struct {
	// ElemSize is the transfer element size in bytes, 1 when zero.
	ElemSize int
	// Hook observes handler entry/exit, no-op when nil.
	Hook Hook
}

// Pacer is the refill side of an outbound channel: one chunk in flight at a
// time on the primary descriptor, the next one started from the completion
// interrupt.
type Pacer struct {
	ch    *Channel
	chunk []byte
	hook  Hook
	irq   bool

	mask    sync.Mutex
	busy    bool
	stopped bool
	// pending holds []byte chunks accepted by WriteChunk while busy. A chunk
	// is owned by the pacer until its transfer completes.
	pending *queue.Queue
	idle    chan struct{}

	stats counters
}

// NewPacer creates a pacer moving at most chunkSize bytes per transfer.
func NewPacer(backend Backend, chunkSize int, conf PacerConfig) *Pacer {
	p := &Pacer{
		ch:      NewChannel(backend, conf.ElemSize),
		hook:    conf.Hook,
		pending: queue.New(),
		idle:    make(chan struct{}, 1),
	}
	assert(chunkSize >= p.ch.ElemSize(), "dma: chunk smaller than one element")
	p.chunk = make([]byte, chunkSize-chunkSize%p.ch.ElemSize())
	if p.hook == nil {
		p.hook = nopHook{}
	}
	if src, ok := backend.(IRQSource); ok {
		src.SetHandler(p)
		p.irq = true
	}
	return p
}

// Channel returns the underlying channel.
func (p *Pacer) Channel() *Channel {
	return p.ch
}

// ChunkSize returns the largest transfer Pump starts.
func (p *Pacer) ChunkSize() int {
	return len(p.chunk)
}

// Stats returns a snapshot of the counters.
func (p *Pacer) Stats() Stats {
	return p.stats.snapshot()
}

// Busy reports whether a transfer is in flight.
func (p *Pacer) Busy() bool {
	p.mask.Lock()
	defer p.mask.Unlock()
	return p.busy
}

// Queued returns the number of chunks waiting for the channel.
func (p *Pacer) Queued() int {
	p.mask.Lock()
	defer p.mask.Unlock()
	return p.pending.Length()
}

// HandleDMA implements Handler.
func (p *Pacer) HandleDMA(ev Event) {
	if ev == EventComplete {
		p.OnTxComplete()
	}
}

// OnTxComplete handles the transmit completion interrupt: it clears busy and
// starts the next queued chunk, if any.
func (p *Pacer) OnTxComplete() {
	p.hook.Enter(EventComplete)
	defer p.hook.Exit(EventComplete)

	p.mask.Lock()
	defer p.mask.Unlock()
	if !p.busy {
		p.stats.spurious.Add(1)
		return
	}
	p.busy = false
	p.stats.completions.Add(1)
	if p.pending.Length() > 0 && !p.stopped {
		p.start(p.pending.Remove().([]byte))
		return
	}
	select {
	case p.idle <- struct{}{}:
	default:
	}
}

// Pump pulls up to one chunk from src and starts it. It is a no-op while a
// transfer is in flight and returns the bytes started.
func (p *Pacer) Pump(src Source) int {
	p.mask.Lock()
	defer p.mask.Unlock()
	if p.busy || p.stopped {
		return 0
	}
	n := src.TryRead(p.chunk)
	n -= n % p.ch.ElemSize()
	if n <= 0 {
		return 0
	}
	p.start(p.chunk[:n])
	return n
}

// WriteChunk starts buf when idle or queues it behind the transfer in
// flight. buf must not be modified until the pacer is idle again.
func (p *Pacer) WriteChunk(buf []byte) error {
	if len(buf) < p.ch.ElemSize() {
		return ErrEmptyChunk
	}
	p.mask.Lock()
	defer p.mask.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.busy {
		p.pending.Add(buf)
		return nil
	}
	p.start(buf)
	return nil
}

// start programs and arms the primary descriptor. Must be called under mask.
func (p *Pacer) start(buf []byte) {
	p.busy = true
	p.stats.chunks.Add(1)
	p.stats.sent.Add(uint64(len(buf)))
	p.ch.Configure(Primary, buf, ModeBasic)
	p.ch.Arm(Primary)
}

// PumpSync moves everything src currently holds, spinning on the channel
// until each chunk is done. Meant for synchronous demo and test call sites;
// the production path is Pump driven from the completion interrupt.
func (p *Pacer) PumpSync(ctx context.Context, src Source) (int, error) {
	total := 0
	for {
		if err := p.spin(ctx); err != nil {
			return total, err
		}
		n := p.Pump(src)
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

// spin busy-waits until no transfer is in flight.
func (p *Pacer) spin(ctx context.Context) error {
	for p.Busy() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.irq && p.ch.IsDone(Primary) {
			p.OnTxComplete()
			continue
		}
		runtime.Gosched()
	}
	return nil
}

// Flush blocks until the transfer in flight and all queued chunks are done.
func (p *Pacer) Flush(ctx context.Context) error {
	for {
		p.mask.Lock()
		done := !p.busy && p.pending.Length() == 0
		p.mask.Unlock()
		if done {
			return nil
		}
		if !p.irq {
			if err := p.spin(ctx); err != nil {
				return err
			}
			continue
		}
		select {
		case <-p.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop disables the channel and drops queued chunks.
func (p *Pacer) Stop() {
	p.mask.Lock()
	defer p.mask.Unlock()
	p.ch.Disable()
	p.stopped = true
	p.busy = false
	for p.pending.Length() > 0 {
		p.pending.Remove()
	}
	select {
	case p.idle <- struct{}{}:
	default:
	}
}

// Restart re-enables a stopped pacer.
func (p *Pacer) Restart() {
	p.mask.Lock()
	defer p.mask.Unlock()
	p.stopped = false
}
