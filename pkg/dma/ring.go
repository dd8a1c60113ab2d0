package dma

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// Config configures a Ring.
type Config struct {
	// Mode selects how the backend switches halves.
	Mode Mode
	// ElemSize is the transfer element size in bytes, 1 when zero.
	ElemSize int
	// Clock stamps activity, SystemClock when nil.
	Clock Clock
	// IdleThreshold is the IdleMonitor threshold in clock ticks.
	IdleThreshold Tick
	// Hook observes handler entry/exit, no-op when nil.
	Hook Hook
}

// Ring composes two halves and one channel into a single logical byte ring.
// Positions live in [0, 2*capacity): half 0 then half 1.
//
// Invariants:
//   - head is written only by the Producer, under mask, and only advances
//     until Reset;
//   - tail is written only by the Consumer;
//   - the half reported active is owned by the hardware.
//
// A consumer slower than the producer loses the oldest unread bytes silently;
// such laps are counted in Stats.Overruns.
type Ring struct {
	ch       *Channel
	half     [2]HalfBuffer
	mode     Mode
	capacity uint32
	size     uint32

	// mask stands in for masking the channel interrupt: the completion and
	// timeout paths never interleave.
	mask sync.Mutex

	head    atomic.Uint32
	tail    atomic.Uint32
	stopped atomic.Bool
	notify  chan struct{}

	idle  *IdleMonitor
	clock Clock
	hook  Hook
	stats counters

	producer Producer
	consumer Consumer
}

// NewRing creates a ring over half0 and half1, registers its interrupt
// handler with the backend (if it dispatches its own) and arms the channel.
// Both halves must have the same non-zero length, a multiple of ElemSize.
func NewRing(backend Backend, half0, half1 []byte, conf Config) *Ring {
	assert(len(half0) > 0 && len(half0) == len(half1), "dma: halves must be of equal non-zero size")
	ch := NewChannel(backend, conf.ElemSize)
	assert(len(half0)%ch.ElemSize() == 0, "dma: half size not a multiple of element size")
	r := &Ring{
		ch:       ch,
		mode:     conf.Mode,
		capacity: uint32(len(half0)),
		size:     2 * uint32(len(half0)),
		notify:   make(chan struct{}, 1),
		idle:     NewIdleMonitor(conf.IdleThreshold),
		clock:    conf.Clock,
		hook:     conf.Hook,
	}
	r.half[Primary].buf, r.half[Alternate].buf = half0, half1
	if r.clock == nil {
		r.clock = SystemClock()
	}
	if r.hook == nil {
		r.hook = nopHook{}
	}
	r.producer.r, r.consumer.r = r, r
	if src, ok := backend.(IRQSource); ok {
		src.SetHandler(&r.producer)
	}
	r.Reset()
	return r
}

// Producer returns the interrupt-side handle.
func (r *Ring) Producer() *Producer {
	return &r.producer
}

// Consumer returns the polling-side handle.
func (r *Ring) Consumer() *Consumer {
	return &r.consumer
}

// Channel returns the underlying channel.
func (r *Ring) Channel() *Channel {
	return r.ch
}

// Capacity returns the size of one half in bytes.
func (r *Ring) Capacity() int {
	return int(r.capacity)
}

// Size returns the size of the logical ring, 2*Capacity.
func (r *Ring) Size() int {
	return int(r.size)
}

// Head returns a snapshot of the head position.
func (r *Ring) Head() int {
	return int(r.head.Load())
}

// Tail returns a snapshot of the tail position.
func (r *Ring) Tail() int {
	return int(r.tail.Load())
}

// Half returns a read-only view of a half's ownership.
func (r *Ring) Half(id HalfID) *HalfBuffer {
	return &r.half[id]
}

// Idle returns the idle monitor.
func (r *Ring) Idle() *IdleMonitor {
	return r.idle
}

// Clock returns the ring clock.
func (r *Ring) Clock() Clock {
	return r.clock
}

// Stats returns a snapshot of the counters.
func (r *Ring) Stats() Stats {
	return r.stats.snapshot()
}

// ResetStats zeroes the counters.
func (r *Ring) ResetStats() {
	r.stats.reset()
}

// Stopped reports whether the ring was stopped.
func (r *Ring) Stopped() bool {
	return r.stopped.Load()
}

// Reset re-initializes the ring: head=tail=0, both halves configured and
// the channel armed on the primary half.
func (r *Ring) Reset() {
	r.mask.Lock()
	defer r.mask.Unlock()
	r.ch.Configure(Primary, r.half[Primary].buf, r.mode)
	r.ch.Configure(Alternate, r.half[Alternate].buf, r.mode)
	r.head.Store(0)
	r.tail.Store(0)
	r.half[Primary].handTo(OwnerHardware)
	r.half[Alternate].handTo(OwnerHardware)
	r.idle.Touch(r.clock.Ticks())
	r.stopped.Store(false)
	r.ch.Arm(Primary)
	glog.V(3).Infof("dma: ring reset capacity=%d mode=%s elem=%d", r.capacity, r.mode, r.ch.ElemSize())
}

// Stop disables the channel and wakes blocked readers. Bytes already
// exposed stay readable.
func (r *Ring) Stop() {
	r.mask.Lock()
	defer r.mask.Unlock()
	if r.stopped.Load() {
		return
	}
	r.ch.Disable()
	r.half[Primary].handTo(OwnerSoftware)
	r.half[Alternate].handTo(OwnerSoftware)
	r.stopped.Store(true)
	r.signal()
	glog.V(3).Infof("dma: ring stopped head=%d tail=%d", r.head.Load(), r.tail.Load())
}

func (r *Ring) base(half HalfID) uint32 {
	return uint32(half) * r.capacity
}

func (r *Ring) available(head, tail uint32) uint32 {
	return (head + r.size - tail) % r.size
}

// advance moves head forward to pos and returns the bytes exposed. Must be
// called under mask.
func (r *Ring) advance(pos uint32) uint32 {
	pos %= r.size
	head := r.head.Load()
	grow := r.available(pos, head)
	if grow == 0 {
		return 0
	}
	r.stats.exposed.Add(uint64(grow))
	r.head.Store(pos)
	return grow
}

func (r *Ring) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Producer is the interrupt-side handle of a Ring. Its methods are the only
// writers of head.
type Producer struct {
	r *Ring
}

// HandleDMA implements Handler.
func (p *Producer) HandleDMA(ev Event) {
	switch ev {
	case EventComplete:
		p.Complete()
	case EventTimeout:
		p.Timeout()
	}
}

// Complete handles the completion interrupt of the active half: it re-arms
// the half, flips the active half and exposes the completed half.
func (p *Producer) Complete() {
	r := p.r
	r.hook.Enter(EventComplete)
	defer r.hook.Exit(EventComplete)

	r.mask.Lock()
	defer r.mask.Unlock()
	if !r.ch.Armed() {
		r.stats.spurious.Add(1)
		return
	}
	prev := r.ch.Active()
	unread := r.available(r.head.Load(), r.tail.Load())
	r.ch.Reload(prev)
	next := r.ch.Active()
	unread += r.advance(r.base(prev) + r.capacity)
	assert(r.half[prev].Owner() == OwnerHardware, "dma: completed half not owned by hardware")
	r.half[prev].handTo(OwnerSoftware)
	r.half[next].handTo(OwnerHardware)
	if unread > r.capacity {
		// The consumer is still inside the half the hardware now refills.
		r.stats.overruns.Add(1)
		glog.V(1).Infof("dma: overrun head=%d tail=%d", r.head.Load(), r.tail.Load())
	}
	r.idle.Touch(r.clock.Ticks())
	r.stats.completions.Add(1)
	r.signal()
}

// Timeout handles the idle condition: it exposes the bytes already captured
// in the active half without toggling or reloading it. Invoking it again
// without DMA progress leaves head unchanged.
func (p *Producer) Timeout() {
	r := p.r
	r.hook.Enter(EventTimeout)
	defer r.hook.Exit(EventTimeout)

	r.mask.Lock()
	defer r.mask.Unlock()
	if !r.ch.Armed() {
		r.stats.spurious.Add(1)
		return
	}
	active := r.ch.Active()
	grew := r.advance(r.base(active) + r.filled(active))
	r.idle.Touch(r.clock.Ticks())
	r.stats.timeouts.Add(1)
	if grew > 0 {
		r.signal()
	}
}

// Pending returns the bytes captured in the active half but not yet exposed.
func (p *Producer) Pending() int {
	r := p.r
	r.mask.Lock()
	defer r.mask.Unlock()
	if !r.ch.Armed() {
		return 0
	}
	active := r.ch.Active()
	return int(r.available(r.base(active)+r.filled(active), r.head.Load()))
}

// filled returns the bytes written into half. Must be called under mask.
func (r *Ring) filled(half HalfID) uint32 {
	done := r.capacity - uint32(r.ch.Remaining(half)*r.ch.ElemSize())
	if done > r.capacity {
		return 0
	}
	return done
}
