package framework

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testWaker struct {
	ch chan struct{}
}

func (w *testWaker) Readable() <-chan struct{} {
	return w.ch
}

func TestLoopPriorityOrder(t *testing.T) {
	var order []int
	l := NewLoop()
	for _, lv := range []int{PrLvPump, PrLvDrain, PrLvProcess} {
		lv := lv
		l.AddPoller(lv, PollFunc(func(ctx context.Context, now time.Time) error {
			order = append(order, lv)
			return nil
		}))
	}
	l.RunIteration(context.Background())
	require.Equal(t, []int{PrLvDrain, PrLvProcess, PrLvPump}, order)
}

func TestLoopWaker(t *testing.T) {
	var lock sync.Mutex
	polls := 0
	polled := make(chan struct{}, 16)
	w := &testWaker{ch: make(chan struct{}, 1)}
	l := &Loop{Interval: time.Hour}
	l.AddWaker(w).AddPoller(PrLvNormal, PollFunc(func(ctx context.Context, now time.Time) error {
		lock.Lock()
		polls++
		lock.Unlock()
		polled <- struct{}{}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	w.ch <- struct{}{}
	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("loop not woken")
	}
	l.TriggerNext()
	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("loop not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	lock.Lock()
	require.Equal(t, 2, polls)
	lock.Unlock()
}

type runnablePoller struct {
	started chan struct{}
}

func (p *runnablePoller) Poll(context.Context, time.Time) error {
	return nil
}

func (p *runnablePoller) Run(ctx context.Context) error {
	close(p.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestLoopStartsRunnablePollers(t *testing.T) {
	p := &runnablePoller{started: make(chan struct{})}
	l := &Loop{Interval: time.Millisecond}
	l.AddPoller(PrLvIdle, p)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	select {
	case <-p.started:
	case <-time.After(5 * time.Second):
		t.Fatal("runnable poller not started")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
