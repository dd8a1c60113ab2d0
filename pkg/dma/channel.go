package dma

// Mode selects how the hardware moves between the two descriptors.
type Mode uint8

const (
	// ModeBasic runs one descriptor at a time; Reload switches the live
	// descriptor in software.
	ModeBasic Mode = iota
	// ModePingPong lets the hardware switch to the other descriptor on its
	// own; Reload only re-arms the exhausted one.
	ModePingPong
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModePingPong {
		return "ping-pong"
	}
	return "basic"
}

// Backend is the register-level contract implemented once per peripheral.
// Lengths and remaining counts are in elements, not bytes.
type Backend interface {
	// Configure programs the descriptor of half.
	Configure(half HalfID, buf []byte, length int, mode Mode)
	// Arm enables the channel, starting with half.
	Arm(half HalfID)
	// IsDone reports whether the descriptor of half is exhausted.
	IsDone(half HalfID) bool
	// Remaining reads the transfer counter of half without side effects.
	Remaining(half HalfID) int
	// Reload re-arms half with its configured length.
	Reload(half HalfID)
	// Disable stops the channel.
	Disable()
}

// Event is an interrupt raised by a backend.
type Event uint8

// Events delivered to a Handler.
const (
	EventComplete Event = iota
	EventTimeout
)

// String implements fmt.Stringer.
func (e Event) String() string {
	if e == EventTimeout {
		return "timeout"
	}
	return "complete"
}

// Handler is invoked from the interrupt-dispatch layer.
type Handler interface {
	HandleDMA(Event)
}

// HandleDMAFunc is func type of Handler.
type HandleDMAFunc func(Event)

// HandleDMA implements Handler.
func (f HandleDMAFunc) HandleDMA(ev Event) {
	f(ev)
}

// IRQSource is implemented by backends which dispatch their own interrupts.
// The handler is registered once, at init.
type IRQSource interface {
	SetHandler(Handler)
}

// State is the lifecycle state of a channel.
type State uint8

// Channel states.
const (
	StateIdle State = iota
	StateArmed
	StateDisabled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateDisabled:
		return "disabled"
	}
	return "idle"
}

// Channel wraps one hardware channel's primary/alternate descriptor pair and
// tracks the half the hardware is reported to be working on.
type Channel struct {
	backend  Backend
	elemSize int
	active   HalfID
	state    State
}

// NewChannel wraps a backend. elemSize is the transfer element size in bytes.
func NewChannel(backend Backend, elemSize int) *Channel {
	if elemSize <= 0 {
		elemSize = 1
	}
	return &Channel{backend: backend, elemSize: elemSize}
}

// Backend returns the wrapped backend.
func (c *Channel) Backend() Backend {
	return c.backend
}

// ElemSize returns the element size in bytes.
func (c *Channel) ElemSize() int {
	return c.elemSize
}

// Configure programs half with buf. An empty buffer violates the
// precondition and leaves the descriptor untouched.
func (c *Channel) Configure(half HalfID, buf []byte, mode Mode) {
	length := len(buf) / c.elemSize
	assert(length > 0, "dma: configure with zero length")
	if length == 0 {
		return
	}
	c.backend.Configure(half, buf, length, mode)
	if c.state == StateDisabled {
		c.state = StateIdle
	}
}

// Arm enables the channel starting with half.
func (c *Channel) Arm(half HalfID) {
	c.active = half
	c.state = StateArmed
	c.backend.Arm(half)
}

// Armed reports whether the channel is armed.
func (c *Channel) Armed() bool {
	return c.state == StateArmed
}

// State returns the lifecycle state.
func (c *Channel) State() State {
	return c.state
}

// Active returns the half reported active.
func (c *Channel) Active() HalfID {
	return c.active
}

// IsDone reports whether half is exhausted.
func (c *Channel) IsDone(half HalfID) bool {
	return c.backend.IsDone(half)
}

// Remaining returns the elements left to transfer in half.
func (c *Channel) Remaining(half HalfID) int {
	return c.backend.Remaining(half)
}

// Reload re-arms half and toggles the reported active half. Only called from
// the completion path.
func (c *Channel) Reload(half HalfID) {
	c.backend.Reload(half)
	c.active = half.Other()
}

// Disable stops the channel. The interrupt source must already be masked.
func (c *Channel) Disable() {
	c.backend.Disable()
	c.state = StateDisabled
}
