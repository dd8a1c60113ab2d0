package dma

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	Completions uint32 // full halves exposed by a completion interrupt
	Timeouts    uint32 // partial flushes
	Spurious    uint32 // interrupts taken while not armed
	Overruns    uint32 // completions re-arming a half that still had unread bytes
	Exposed     uint64 // bytes made visible to the consumer
	Consumed    uint64 // bytes copied out by the consumer
	Chunks      uint32 // transmit chunks started
	Sent        uint64 // transmit bytes started
}

type counters struct {
	completions atomic.Uint32
	timeouts    atomic.Uint32
	spurious    atomic.Uint32
	overruns    atomic.Uint32
	exposed     atomic.Uint64
	consumed    atomic.Uint64
	chunks      atomic.Uint32
	sent        atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Completions: c.completions.Load(),
		Timeouts:    c.timeouts.Load(),
		Spurious:    c.spurious.Load(),
		Overruns:    c.overruns.Load(),
		Exposed:     c.exposed.Load(),
		Consumed:    c.consumed.Load(),
		Chunks:      c.chunks.Load(),
		Sent:        c.sent.Load(),
	}
}

func (c *counters) reset() {
	c.completions.Store(0)
	c.timeouts.Store(0)
	c.spurious.Store(0)
	c.overruns.Store(0)
	c.exposed.Store(0)
	c.consumed.Store(0)
	c.chunks.Store(0)
	c.sent.Store(0)
}
