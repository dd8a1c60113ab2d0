package dma_test

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/sim"
)

// seqBytes returns n bytes of the stream starting at offset: byte i holds i%256.
func seqBytes(offset, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(offset + i)
	}
	return b
}

type testRing struct {
	*dma.Ring
	engine *sim.Engine
	fed    int
}

func newTestRing(t *testing.T, capacity int, mode dma.Mode) *testRing {
	e := sim.NewRx()
	r := dma.NewRing(e, make([]byte, capacity), make([]byte, capacity), dma.Config{Mode: mode})
	require.Equal(t, capacity, r.Capacity())
	require.Equal(t, 2*capacity, r.Size())
	return &testRing{Ring: r, engine: e}
}

func (r *testRing) feed(t *testing.T, n int) {
	require.Equal(t, n, r.engine.Feed(seqBytes(r.fed, n)))
	r.fed += n
}

func (r *testRing) read(t *testing.T, n, offset int) {
	p := make([]byte, n)
	require.Equal(t, n, r.Consumer().TryRead(p))
	require.Equal(t, seqBytes(offset, n), p)
}

func TestRingInitialState(t *testing.T) {
	r := newTestRing(t, 64, dma.ModePingPong)
	require.Zero(t, r.Head())
	require.Zero(t, r.Tail())
	require.Zero(t, r.Consumer().Available())
	require.Zero(t, r.Consumer().TryRead(make([]byte, 16)))
	require.True(t, r.Channel().Armed())
	require.Equal(t, dma.Primary, r.Channel().Active())
	require.Equal(t, dma.OwnerHardware, r.Half(dma.Primary).Owner())
	require.Equal(t, dma.OwnerHardware, r.Half(dma.Alternate).Owner())
}

func TestRingCompleteAndTimeout(t *testing.T) {
	r := newTestRing(t, 128, dma.ModePingPong)

	r.feed(t, 128)
	require.Equal(t, 128, r.Head())
	require.Equal(t, dma.Alternate, r.Channel().Active())
	require.Equal(t, dma.OwnerSoftware, r.Half(dma.Primary).Owner())
	require.Equal(t, dma.OwnerHardware, r.Half(dma.Alternate).Owner())

	p := make([]byte, 200)
	require.Equal(t, 128, r.Consumer().TryRead(p))
	require.Equal(t, seqBytes(0, 128), p[:128])
	require.Equal(t, 128, r.Tail())

	r.feed(t, 40)
	require.Equal(t, 128, r.Head())
	require.Equal(t, 40, r.Producer().Pending())
	r.engine.Idle()
	require.Equal(t, 168, r.Head())
	require.Zero(t, r.Producer().Pending())
	r.read(t, 40, 128)
	require.Equal(t, 168, r.Tail())

	stats := r.Stats()
	require.EqualValues(t, 1, stats.Completions)
	require.EqualValues(t, 1, stats.Timeouts)
	require.EqualValues(t, 168, stats.Exposed)
	require.EqualValues(t, 168, stats.Consumed)
}

func TestRingTimeoutIdempotent(t *testing.T) {
	r := newTestRing(t, 128, dma.ModePingPong)
	r.feed(t, 30)
	r.Producer().Timeout()
	require.Equal(t, 30, r.Head())
	r.Producer().Timeout()
	r.Producer().Timeout()
	require.Equal(t, 30, r.Head())
	require.Equal(t, dma.Primary, r.Channel().Active())
	stats := r.Stats()
	require.EqualValues(t, 3, stats.Timeouts)
	require.EqualValues(t, 30, stats.Exposed)
	require.Zero(t, stats.Completions)

	// The remainder of the half is exposed by the completion.
	r.feed(t, 98)
	require.Equal(t, 128, r.Head())
	require.EqualValues(t, 128, r.Stats().Exposed)
	r.read(t, 128, 0)
}

func TestRingTimeoutOnEmptyHalf(t *testing.T) {
	r := newTestRing(t, 64, dma.ModePingPong)
	r.engine.Idle()
	require.Zero(t, r.Head())
	select {
	case <-r.Consumer().Readable():
		t.Fatal("notified without data")
	default:
	}
}

func TestRingWraparound(t *testing.T) {
	r := newTestRing(t, 256, dma.ModePingPong)
	r.feed(t, 256)
	r.read(t, 256, 0)
	r.feed(t, 256)
	require.Zero(t, r.Head())
	r.read(t, 256, 256)
	require.Zero(t, r.Tail())
	r.feed(t, 256)
	require.Equal(t, 256, r.Head())
	r.read(t, 188, 512)
	require.Equal(t, 188, r.Tail())

	r.feed(t, 50)
	r.engine.Idle()
	require.Equal(t, 306, r.Head())
	require.Equal(t, 118, r.Consumer().Available())
	r.read(t, 118, 700)
	require.Equal(t, 306, r.Tail())
}

func TestRingSplitCopy(t *testing.T) {
	r := newTestRing(t, 128, dma.ModePingPong)
	r.feed(t, 128)
	r.read(t, 128, 0)
	r.feed(t, 128)
	r.read(t, 122, 128)
	require.Equal(t, 250, r.Tail())

	r.feed(t, 14)
	r.engine.Idle()
	require.Equal(t, 14, r.Head())
	require.Equal(t, 20, r.Consumer().Available())

	p := make([]byte, 64)
	require.Equal(t, 20, r.Consumer().TryRead(p))
	require.Equal(t, []byte{250, 251, 252, 253, 254, 255}, p[:6])
	require.Equal(t, seqBytes(0, 14), p[6:20])
	require.Equal(t, 14, r.Tail())
}

func TestRingSplitCopyAcrossWrap(t *testing.T) {
	r := newTestRing(t, 256, dma.ModePingPong)
	r.feed(t, 256)
	r.read(t, 256, 0)
	r.feed(t, 256)
	r.read(t, 250, 256)
	require.Equal(t, 506, r.Tail())

	r.feed(t, 14)
	r.engine.Idle()
	require.Equal(t, 14, r.Head())
	require.Equal(t, 20, r.Consumer().Available())
	r.read(t, 20, 506)
}

func TestRingBasicMode(t *testing.T) {
	r := newTestRing(t, 32, dma.ModeBasic)
	r.feed(t, 32)
	require.Equal(t, 32, r.Head())
	require.Equal(t, dma.Alternate, r.Channel().Active())
	require.Equal(t, dma.Alternate, r.engine.Active())
	r.feed(t, 10)
	r.engine.Idle()
	require.Equal(t, 42, r.Head())
	r.read(t, 42, 0)

	r.feed(t, 22)
	require.Zero(t, r.Head())
	require.Equal(t, dma.Primary, r.engine.Active())
	r.read(t, 22, 42)
	require.Zero(t, r.engine.Dropped())
}

func TestRingOverrun(t *testing.T) {
	r := newTestRing(t, 16, dma.ModePingPong)
	r.feed(t, 16)
	require.Zero(t, r.Stats().Overruns)
	r.feed(t, 16)
	require.EqualValues(t, 1, r.Stats().Overruns)
	require.Zero(t, r.Consumer().Available())
	require.Zero(t, r.engine.Dropped())
}

func TestRingElemSize(t *testing.T) {
	e := sim.NewRx(sim.WithElemSize(2))
	r := dma.NewRing(e, make([]byte, 8), make([]byte, 8), dma.Config{Mode: dma.ModePingPong, ElemSize: 2})
	require.Equal(t, 3, e.Feed([]byte{1, 2, 3}))
	require.Equal(t, 3, r.Channel().Remaining(dma.Primary))
	r.Producer().Timeout()
	require.Equal(t, 2, r.Head())

	require.Equal(t, 5, e.Feed([]byte{4, 5, 6, 7, 8}))
	require.Equal(t, 8, r.Head())
	p := make([]byte, 16)
	require.Equal(t, 8, r.Consumer().TryRead(p))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, p[:8])
}

func TestRingSpurious(t *testing.T) {
	r := newTestRing(t, 16, dma.ModePingPong)
	r.feed(t, 5)
	r.Stop()
	require.True(t, r.Stopped())
	require.Equal(t, dma.StateDisabled, r.Channel().State())
	r.Producer().Complete()
	r.Producer().Timeout()
	require.Zero(t, r.Head())
	stats := r.Stats()
	require.EqualValues(t, 2, stats.Spurious)
	require.Zero(t, stats.Completions)
	require.Zero(t, stats.Timeouts)

	require.Zero(t, r.engine.Feed([]byte{1}))
	require.EqualValues(t, 1, r.engine.Dropped())
}

func TestRingStopDrains(t *testing.T) {
	r := newTestRing(t, 16, dma.ModePingPong)
	r.feed(t, 10)
	r.engine.Idle()
	r.Stop()
	r.Stop()
	require.Equal(t, dma.OwnerSoftware, r.Half(dma.Primary).Owner())
	require.Equal(t, dma.OwnerSoftware, r.Half(dma.Alternate).Owner())

	data, err := io.ReadAll(r.Consumer())
	require.NoError(t, err)
	require.Equal(t, seqBytes(0, 10), data)

	_, err = r.Consumer().Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)
	require.Equal(t, dma.ErrStopped, r.Consumer().WaitReadable(context.Background()))
}

func TestRingReset(t *testing.T) {
	r := newTestRing(t, 16, dma.ModePingPong)
	r.feed(t, 20)
	r.Stop()
	r.Reset()
	require.False(t, r.Stopped())
	require.Zero(t, r.Head())
	require.Zero(t, r.Tail())
	require.True(t, r.engine.Enabled())
	require.Equal(t, dma.Primary, r.engine.Active())

	r.fed = 0
	r.feed(t, 16)
	r.read(t, 16, 0)
}

func TestRingReadContext(t *testing.T) {
	r := newTestRing(t, 32, dma.ModePingPong)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Consumer().ReadContext(ctx, make([]byte, 4))
	require.Equal(t, context.Canceled, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.engine.Feed(seqBytes(0, 6))
		r.engine.Idle()
	}()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := make([]byte, 32)
	n, err := r.Consumer().ReadContext(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, seqBytes(0, 6), p[:n])
}

func TestRingDiscard(t *testing.T) {
	r := newTestRing(t, 16, dma.ModePingPong)
	r.feed(t, 16)
	require.Equal(t, 10, r.Consumer().Discard(10))
	require.Equal(t, 6, r.Consumer().Discard(10))
	require.Zero(t, r.Consumer().Discard(1))
	require.Equal(t, 16, r.Tail())
}

func TestRingHook(t *testing.T) {
	var enter, exit []dma.Event
	e := sim.NewRx()
	r := dma.NewRing(e, make([]byte, 4), make([]byte, 4), dma.Config{
		Mode: dma.ModePingPong,
		Hook: dma.HookFuncs{
			OnEnter: func(ev dma.Event) { enter = append(enter, ev) },
			OnExit:  func(ev dma.Event) { exit = append(exit, ev) },
		},
	})
	e.Feed(make([]byte, 6))
	e.Idle()
	expected := []dma.Event{dma.EventComplete, dma.EventTimeout}
	require.Equal(t, expected, enter)
	require.Equal(t, expected, exit)
	require.Equal(t, 6, r.Head())
}

// TestRingRandomized interleaves feeds, idle flushes and reads, checking
// head only advances, available stays in range and the stream comes out
// intact.
func TestRingRandomized(t *testing.T) {
	for _, mode := range []dma.Mode{dma.ModeBasic, dma.ModePingPong} {
		t.Run(mode.String(), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(1))
			r := newTestRing(t, 64, mode)
			read := 0
			exposed := uint64(0)
			for i := 0; i < 2000; i++ {
				switch rnd.Intn(3) {
				case 0:
					// Never let unread bytes exceed one half.
					room := r.Capacity() - r.Consumer().Available() - r.Producer().Pending()
					if room > 0 {
						r.feed(t, 1+rnd.Intn(room))
					}
				case 1:
					r.engine.Idle()
				case 2:
					p := make([]byte, rnd.Intn(100))
					n := r.Consumer().TryRead(p)
					require.Equal(t, seqBytes(read, n), p[:n])
					read += n
				}
				avail := r.Consumer().Available()
				require.True(t, avail >= 0 && avail < r.Size())
				stats := r.Stats()
				require.True(t, stats.Exposed >= exposed)
				exposed = stats.Exposed
			}
			r.engine.Idle()
			rest := make([]byte, r.Size())
			n := r.Consumer().TryRead(rest)
			require.Equal(t, seqBytes(read, n), rest[:n])
			require.Equal(t, r.fed, read+n)
			require.Zero(t, r.Stats().Overruns)
		})
	}
}
