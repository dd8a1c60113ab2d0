package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the loop interval when Loop.Interval is zero.
const DefaultInterval = 100 * time.Millisecond

// Loop polls registered pollers by priority level on every interval tick
// and whenever a waker fires.
type Loop struct {
	Interval time.Duration

	pollers [PriorityLevels][]Poller
	wakers  []Waker
	runners []Runnable
	lock    sync.Mutex

	wakeUpCh chan struct{}
	once     sync.Once
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddPoller registers pollers at a priority level. Pollers which are also
// Runnable are started with the loop.
func (l *Loop) AddPoller(priorityLevel int, pollers ...Poller) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.pollers[priorityLevel] = append(l.pollers[priorityLevel], pollers...)
	for _, p := range pollers {
		if runner, ok := p.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddWaker registers a notification source triggering an iteration.
func (l *Loop) AddWaker(wakers ...Waker) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.wakers = append(l.wakers, wakers...)
	return l
}

// AddRunnable adds Runnable implementions started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.runners = append(l.runners, runnables...)
	return l
}

func (l *Loop) wakeUp() chan struct{} {
	l.once.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

// TriggerNext schedules an iteration immediately.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	wakeUpCh := l.wakeUp()
	l.lock.Lock()
	runners := append([]Runnable(nil), l.runners...)
	wakers := append([]Waker(nil), l.wakers...)
	l.lock.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(runCtx)
	runner.Go(runners...)
	for _, w := range wakers {
		go l.forward(runCtx, w)
	}
	defer func() {
		cancel()
		if err := runner.Wait(); err != nil {
			glog.Errorf("loop runners: %v", err)
		}
	}()

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunIteration(ctx)
		case <-wakeUpCh:
			l.RunIteration(ctx)
		}
	}
}

func (l *Loop) forward(ctx context.Context, w Waker) {
	ch := w.Readable()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			l.TriggerNext()
		}
	}
}

// RunIteration polls every poller once.
func (l *Loop) RunIteration(ctx context.Context) {
	now := time.Now()
	for lv := 0; lv < PriorityLevels; lv++ {
		l.lock.Lock()
		pollers := l.pollers[lv]
		l.lock.Unlock()
		for _, p := range pollers {
			if err := p.Poll(ctx, now); err != nil {
				glog.Errorf("poller error: %v", err)
			}
		}
	}
}
