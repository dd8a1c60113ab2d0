// Package pcm captures 16-bit little-endian PCM samples through a DMA ring
// with 2-byte transfer elements.
package pcm

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/sim"
)

// SampleSize is the size of one sample in bytes.
const SampleSize = 2

// Config configures a Capture.
type Config struct {
	// Rate is the sample rate in Hz, used when Paced.
	Rate int
	// HalfSamples is the capacity of one half in samples.
	HalfSamples int
	// Period is the number of samples delivered per source read.
	Period int
	// Paced delivers each period in real time instead of as fast as the
	// source allows.
	Paced bool
	// IdleTime flushes captured samples once the source stalls that long.
	// Zero only flushes full halves and the final partial one.
	IdleTime time.Duration
}

// Capture is a PCM capture stream.
type Capture struct {
	src  io.Reader
	conf Config
	rx   *sim.Engine
	ring *dma.Ring
	raw  []byte
}

// New creates a capture reading raw samples from src.
func New(src io.Reader, conf Config) *Capture {
	if conf.Rate <= 0 {
		conf.Rate = 8000
	}
	if conf.HalfSamples <= 0 {
		conf.HalfSamples = 256
	}
	if conf.Period <= 0 {
		conf.Period = conf.HalfSamples / 4
		if conf.Period == 0 {
			conf.Period = 1
		}
	}
	c := &Capture{
		src:  src,
		conf: conf,
		rx:   sim.NewRx(sim.WithElemSize(SampleSize)),
	}
	size := conf.HalfSamples * SampleSize
	c.ring = dma.NewRing(c.rx, make([]byte, size), make([]byte, size), dma.Config{
		Mode:          dma.ModePingPong,
		ElemSize:      SampleSize,
		IdleThreshold: dma.Tick(conf.IdleTime / time.Microsecond),
	})
	return c
}

// Ring returns the capture ring.
func (c *Capture) Ring() *dma.Ring {
	return c.ring
}

// Run delivers the source until it ends or ctx is done. At the end of the
// source the capture is stopped with a final flush.
func (c *Capture) Run(ctx context.Context) error {
	buf := make([]byte, c.conf.Period*SampleSize)
	if c.conf.IdleTime > 0 {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		w := &dma.IdleWatcher{Ring: c.ring, Interval: c.conf.IdleTime / 4}
		go w.Run(watchCtx)
	}
	var ticker *time.Ticker
	if c.conf.Paced {
		ticker = time.NewTicker(time.Duration(c.conf.Period) * time.Second / time.Duration(c.conf.Rate))
		defer ticker.Stop()
	}
	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(c.src, buf)
		if n > 0 {
			c.rx.Feed(buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			c.Stop()
			return nil
		}
		if err != nil {
			c.Stop()
			return err
		}
	}
}

// Stop exposes the samples captured so far and stops the stream.
func (c *Capture) Stop() {
	if c.ring.Stopped() {
		return
	}
	c.ring.Producer().Timeout()
	c.ring.Stop()
	if dropped := c.rx.Dropped(); dropped > 0 {
		glog.Warningf("pcm: %d bytes dropped", dropped)
	}
}

// ReadSamples blocks until samples are available and copies up to len(dst).
// It returns io.EOF once the capture is stopped and drained.
func (c *Capture) ReadSamples(ctx context.Context, dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(c.raw) < len(dst)*SampleSize {
		c.raw = make([]byte, len(dst)*SampleSize)
	}
	raw := c.raw[:len(dst)*SampleSize]
	n, err := c.ring.Consumer().ReadContext(ctx, raw)
	if err == dma.ErrStopped {
		return 0, io.EOF
	}
	if err != nil {
		return 0, err
	}
	for i := 0; i < n/SampleSize; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[i*SampleSize:]))
	}
	return n / SampleSize, nil
}

// Tone is an endless sine wave source of raw little-endian samples.
type Tone struct {
	Freq      float64
	Rate      float64
	Amplitude int16

	n    uint64
	part []byte
}

// Sample returns the i-th sample.
func (t *Tone) Sample(i uint64) int16 {
	return int16(math.Round(float64(t.Amplitude) * math.Sin(2*math.Pi*t.Freq*float64(i)/t.Rate)))
}

// Read implements io.Reader.
func (t *Tone) Read(p []byte) (int, error) {
	written := copy(p, t.part)
	t.part = t.part[written:]
	var b [SampleSize]byte
	for written < len(p) {
		binary.LittleEndian.PutUint16(b[:], uint16(t.Sample(t.n)))
		t.n++
		k := copy(p[written:], b[:])
		t.part = append(t.part[:0], b[k:]...)
		written += k
	}
	return written, nil
}
