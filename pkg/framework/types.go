package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Poller is invoked on every loop iteration to make progress without
// blocking, e.g. draining a ring consumer or pumping a pacer.
type Poller interface {
	Poll(ctx context.Context, now time.Time) error
}

// PollFunc is the func form of Poller.
type PollFunc func(context.Context, time.Time) error

// Poll implements Poller.
func (f PollFunc) Poll(ctx context.Context, now time.Time) error {
	return f(ctx, now)
}

// Waker notifies a loop that a poller has work. The dma ring consumer
// implements it.
type Waker interface {
	Readable() <-chan struct{}
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 8

// Predefined priority levels, polled in ascending order.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 2
	PrLvNormal int = 4
	PrLvLow    int = 6
	PrLvIdle   int = PriorityLevels - 1

	// PrLvDrain is the level of pollers draining receive rings.
	PrLvDrain = PrLvHigh
	// PrLvProcess is the level of pollers consuming drained data.
	PrLvProcess = PrLvNormal
	// PrLvPump is the level of pollers feeding transmit pacers.
	PrLvPump = PrLvLow
)
