// Package uart streams a serial line through a DMA ring for reception and a
// pacer for transmission.
//
// Reception runs the ring in ping-pong mode. The receiver idle condition is
// a read timeout of IdleChars character times on the line; it flushes the
// bytes captured so far, so short messages never wait for a half to fill.
package uart

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/mem"
	"github.com/robotalks/pingpong/pkg/dma/sim"
)

// Defaults applied to zero Config fields.
const (
	DefaultBaud      = 115200
	DefaultHalfSize  = 256
	DefaultIdleChars = 4
	DefaultChunkSize = 64
)

// ErrClosed indicates the port has been closed.
var ErrClosed = errors.New("port closed")

// Line is the serial line under a Port. serial.Port satisfies it.
// Read must return 0 bytes and no error when the read timeout expires.
type Line interface {
	io.ReadWriter
	SetReadTimeout(time.Duration) error
	Close() error
}

// Config configures a Port.
type Config struct {
	Device    string
	Baud      int
	HalfSize  int
	IdleChars int
	ChunkSize int
}

func (c Config) withDefaults() Config {
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.HalfSize <= 0 {
		c.HalfSize = DefaultHalfSize
	}
	if c.IdleChars <= 0 {
		c.IdleChars = DefaultIdleChars
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	return c
}

// IdleTime returns the receiver idle timeout: IdleChars character times of
// 10 bits, at least one millisecond.
func (c Config) IdleTime() time.Duration {
	c = c.withDefaults()
	d := time.Duration(c.IdleChars) * 10 * time.Second / time.Duration(c.Baud)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// Port is a buffered full-duplex serial port.
type Port struct {
	line   Line
	conf   Config
	region *mem.Region
	rx     *sim.Engine
	tx     *sim.Engine
	ring   *dma.Ring
	pacer  *dma.Pacer

	closeLock sync.Mutex
	closed    bool
}

// Open opens the serial device named in conf.
func Open(conf Config) (*Port, error) {
	conf = conf.withDefaults()
	sp, err := serial.Open(conf.Device, &serial.Mode{BaudRate: conf.Baud})
	if err != nil {
		return nil, err
	}
	p, err := New(sp, conf)
	if err != nil {
		sp.Close()
		return nil, err
	}
	glog.Infof("uart: opened %s at %d baud", conf.Device, conf.Baud)
	return p, nil
}

// New creates a Port over an opened line.
func New(line Line, conf Config) (*Port, error) {
	conf = conf.withDefaults()
	region, err := mem.Alloc(conf.HalfSize)
	if err != nil {
		return nil, err
	}
	if err := line.SetReadTimeout(conf.IdleTime()); err != nil {
		region.Free()
		return nil, err
	}
	p := &Port{
		line:   line,
		conf:   conf,
		region: region,
		rx:     sim.NewRx(),
		tx:     sim.NewTx(line, sim.Async()),
	}
	p.ring = dma.NewRing(p.rx, region.Half0, region.Half1, dma.Config{Mode: dma.ModePingPong})
	p.pacer = dma.NewPacer(p.tx, conf.ChunkSize, dma.PacerConfig{})
	return p, nil
}

// Config returns the effective configuration.
func (p *Port) Config() Config {
	return p.conf
}

// Ring returns the receive ring.
func (p *Port) Ring() *dma.Ring {
	return p.ring
}

// Pacer returns the transmit pacer.
func (p *Port) Pacer() *dma.Pacer {
	return p.pacer
}

// Dropped returns the received bytes lost because the ring was stopped.
func (p *Port) Dropped() uint64 {
	return p.rx.Dropped()
}

// Run receives from the line until ctx is done or the line fails.
func (p *Port) Run(ctx context.Context) error {
	buf := make([]byte, p.conf.HalfSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.line.Read(buf)
		if n > 0 {
			p.rx.Feed(buf[:n])
		} else if err == nil {
			p.rx.Idle()
		}
		if err != nil {
			if p.isClosed() {
				return nil
			}
			return err
		}
	}
}

// Read implements io.Reader. It returns io.EOF after Stop once the
// received bytes are drained.
func (p *Port) Read(b []byte) (int, error) {
	return p.ring.Consumer().Read(b)
}

// ReadContext reads with cancellation.
func (p *Port) ReadContext(ctx context.Context, b []byte) (int, error) {
	return p.ring.Consumer().ReadContext(ctx, b)
}

// Write implements io.Writer. The bytes are copied and queued in chunks;
// use Flush to wait for them to leave.
func (p *Port) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n := len(b)
		if n > p.conf.ChunkSize {
			n = p.conf.ChunkSize
		}
		if err := p.pacer.WriteChunk(append([]byte(nil), b[:n]...)); err != nil {
			if err == dma.ErrStopped {
				err = ErrClosed
			}
			return written, err
		}
		b, written = b[n:], written+n
	}
	return written, nil
}

// Flush waits until all written bytes reached the line.
func (p *Port) Flush(ctx context.Context) error {
	if err := p.pacer.Flush(ctx); err != nil {
		return err
	}
	return p.tx.Err()
}

// Stop stops reception. Bytes already received stay readable.
func (p *Port) Stop() {
	p.ring.Stop()
}

// Close stops both directions and closes the line. Read must not be called
// after Close.
func (p *Port) Close() error {
	p.closeLock.Lock()
	if p.closed {
		p.closeLock.Unlock()
		return nil
	}
	p.closed = true
	p.closeLock.Unlock()

	p.ring.Stop()
	p.pacer.Stop()
	err := p.line.Close()
	if ferr := p.region.Free(); err == nil {
		err = ferr
	}
	glog.Infof("uart: closed %s", p.conf.Device)
	return err
}

func (p *Port) isClosed() bool {
	p.closeLock.Lock()
	defer p.closeLock.Unlock()
	return p.closed
}
