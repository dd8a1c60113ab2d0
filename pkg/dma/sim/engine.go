// Package sim provides a simulated DMA controller implementing dma.Backend.
//
// An Engine stands in for one hardware channel together with the peripheral
// request line driving it. In the peripheral-to-memory direction bytes
// arrive through Feed and land in the live descriptor; in the
// memory-to-peripheral direction Transmit moves the live descriptor into a
// sink. Completion and idle interrupts are dispatched to the handler
// registered through SetHandler, never while the engine lock is held.
package sim

import (
	"io"
	"sync"

	"github.com/robotalks/pingpong/pkg/dma"
)

// Direction is the transfer direction of an engine.
type Direction uint8

// Transfer directions.
const (
	PeripheralToMemory Direction = iota
	MemoryToPeripheral
)

type descriptor struct {
	buf       []byte
	length    int
	remaining int
	armed     bool
}

// Engine simulates one DMA channel with a primary/alternate descriptor pair.
type Engine struct {
	dir      Direction
	elemSize int
	sink     io.Writer
	async    bool

	mu      sync.Mutex
	desc    [2]descriptor
	mode    dma.Mode
	active  dma.HalfID
	enabled bool
	sub     int // bytes of the element being assembled
	handler dma.Handler
	dropped uint64
	err     error
}

// Option configures an Engine.
type Option func(*Engine)

// WithElemSize sets the element size in bytes.
func WithElemSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.elemSize = n
		}
	}
}

// Async makes a memory-to-peripheral engine transmit on its own goroutine
// as soon as it is armed.
func Async() Option {
	return func(e *Engine) {
		e.async = true
	}
}

// NewRx creates a peripheral-to-memory engine.
func NewRx(opts ...Option) *Engine {
	e := &Engine{dir: PeripheralToMemory, elemSize: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewTx creates a memory-to-peripheral engine writing into sink.
func NewTx(sink io.Writer, opts ...Option) *Engine {
	e := &Engine{dir: MemoryToPeripheral, elemSize: 1, sink: sink}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetHandler implements dma.IRQSource.
func (e *Engine) SetHandler(h dma.Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// Configure implements dma.Backend.
func (e *Engine) Configure(half dma.HalfID, buf []byte, length int, mode dma.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desc[half] = descriptor{buf: buf, length: length, remaining: length, armed: true}
	e.mode = mode
	if half == e.active {
		e.sub = 0
	}
}

// Arm implements dma.Backend.
func (e *Engine) Arm(half dma.HalfID) {
	e.mu.Lock()
	e.active = half
	e.enabled = true
	e.sub = 0
	kick := e.dir == MemoryToPeripheral && e.async
	e.mu.Unlock()
	if kick {
		go e.Transmit()
	}
}

// IsDone implements dma.Backend.
func (e *Engine) IsDone(half dma.HalfID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc[half].remaining == 0
}

// Remaining implements dma.Backend.
func (e *Engine) Remaining(half dma.HalfID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc[half].remaining
}

// Reload implements dma.Backend. In basic mode the live descriptor moves to
// the other half here; in ping-pong mode the engine already moved on its own.
func (e *Engine) Reload(half dma.HalfID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := &e.desc[half]
	d.remaining, d.armed = d.length, d.length > 0
	if e.mode == dma.ModeBasic {
		e.active = half.Other()
		e.sub = 0
	}
}

// Disable implements dma.Backend.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	e.desc[dma.Primary].armed = false
	e.desc[dma.Alternate].armed = false
}

// Active returns the half the engine is working on.
func (e *Engine) Active() dma.HalfID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Enabled reports whether the engine is enabled.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Dropped returns the bytes lost because no descriptor was armed.
func (e *Engine) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Err returns the last sink error.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Feed delivers bytes from the peripheral. It raises a completion interrupt
// each time the live descriptor is exhausted and returns the bytes accepted;
// the rest is dropped, as on hardware with no armed descriptor.
func (e *Engine) Feed(p []byte) int {
	fed := 0
	for len(p) > 0 {
		e.mu.Lock()
		d := &e.desc[e.active]
		if !e.enabled || !d.armed || d.remaining == 0 {
			e.dropped += uint64(len(p))
			e.mu.Unlock()
			break
		}
		off := (d.length-d.remaining)*e.elemSize + e.sub
		k := copy(d.buf[off:d.length*e.elemSize], p)
		p, fed = p[k:], fed+k
		e.sub += k
		d.remaining -= e.sub / e.elemSize
		e.sub %= e.elemSize
		done := d.remaining == 0
		if done {
			d.armed = false
			if e.mode == dma.ModePingPong {
				e.active = e.active.Other()
			}
		}
		h := e.handler
		e.mu.Unlock()
		if done && h != nil {
			h.HandleDMA(dma.EventComplete)
		}
	}
	return fed
}

// Idle raises the peripheral idle interrupt.
func (e *Engine) Idle() {
	e.mu.Lock()
	h, enabled := e.handler, e.enabled
	e.mu.Unlock()
	if enabled && h != nil {
		h.HandleDMA(dma.EventTimeout)
	}
}

// Transmit moves what is left of the live descriptor into the sink and
// raises the completion interrupt. A sink error ends the transfer early; it
// is reported here and through Err.
func (e *Engine) Transmit() (int, error) {
	e.mu.Lock()
	d := &e.desc[e.active]
	if e.sink == nil || !e.enabled || !d.armed || d.remaining == 0 {
		e.mu.Unlock()
		return 0, nil
	}
	data := d.buf[(d.length-d.remaining)*e.elemSize : d.length*e.elemSize]
	e.mu.Unlock()

	n, err := e.sink.Write(data)

	e.mu.Lock()
	if err != nil {
		e.err = err
	}
	d.remaining, d.armed = 0, false
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h.HandleDMA(dma.EventComplete)
	}
	return n, err
}
