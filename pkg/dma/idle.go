package dma

import (
	"context"
	"sync/atomic"
	"time"
)

// Tick is a timestamp in clock ticks.
type Tick uint64

// Clock provides ticks for the idle monitor.
type Clock interface {
	Ticks() Tick
}

// ClockFunc is func type of Clock.
type ClockFunc func() Tick

// Ticks implements Clock.
func (f ClockFunc) Ticks() Tick {
	return f()
}

// SystemClock returns a clock counting microseconds since the call.
func SystemClock() Clock {
	start := time.Now()
	return ClockFunc(func() Tick {
		return Tick(time.Since(start) / time.Microsecond)
	})
}

// ManualClock is a clock advanced explicitly.
type ManualClock struct {
	now atomic.Uint64
}

// Ticks implements Clock.
func (c *ManualClock) Ticks() Tick {
	return Tick(c.now.Load())
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d Tick) Tick {
	return Tick(c.now.Add(uint64(d)))
}

// IdleMonitor tracks the last confirmed activity of a ring.
type IdleMonitor struct {
	last      atomic.Uint64
	threshold Tick
}

// NewIdleMonitor creates a monitor. A zero threshold never expires.
func NewIdleMonitor(threshold Tick) *IdleMonitor {
	return &IdleMonitor{threshold: threshold}
}

// Touch records activity at now.
func (m *IdleMonitor) Touch(now Tick) {
	m.last.Store(uint64(now))
}

// LastActivity returns the tick of the last recorded activity.
func (m *IdleMonitor) LastActivity() Tick {
	return Tick(m.last.Load())
}

// Threshold returns the idle threshold.
func (m *IdleMonitor) Threshold() Tick {
	return m.threshold
}

// Expired reports whether no activity was recorded for threshold ticks.
func (m *IdleMonitor) Expired(now Tick) bool {
	if m.threshold == 0 {
		return false
	}
	return now-m.LastActivity() >= m.threshold
}

// IdleWatcher raises partial flushes for backends without an idle
// interrupt: once captured bytes stop growing for the monitor threshold, it
// invokes the timeout path.
type IdleWatcher struct {
	Ring     *Ring
	Interval time.Duration

	lastPending int
}

// Check runs one watch step at now and reports whether a flush was raised.
func (w *IdleWatcher) Check(now Tick) bool {
	mon, prod := w.Ring.Idle(), w.Ring.Producer()
	pending := prod.Pending()
	if pending != w.lastPending {
		w.lastPending = pending
		mon.Touch(now)
		return false
	}
	if pending == 0 || !mon.Expired(now) {
		return false
	}
	prod.Timeout()
	w.lastPending = 0
	return true
}

// Run implements Runnable.
func (w *IdleWatcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval == 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(w.Ring.Clock().Ticks())
		}
	}
}
