// Package lcd streams an RGB565 framebuffer to an SPI display through a
// transmit pacer, one chunk per completion.
package lcd

import (
	"context"
	"errors"
	"io"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/sim"
)

// DefaultChunkSize is the transfer size used when Config.ChunkSize is zero.
const DefaultChunkSize = 512

// ErrOutOfRange indicates a pixel outside the display.
var ErrOutOfRange = errors.New("pixel out of range")

// Color is an RGB565 pixel.
type Color uint16

// RGB packs 8-bit channels into RGB565.
func RGB(r, g, b uint8) Color {
	return Color(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// Config configures a Display.
type Config struct {
	Width     int
	Height    int
	ChunkSize int
}

// Display is a framebuffer bound to an SPI sink.
type Display struct {
	width  int
	height int
	fb     []byte
	chunk  int
	tx     *sim.Engine
	pacer  *dma.Pacer
	frames uint64
}

// New creates a display writing frames to sink.
func New(sink io.Writer, conf Config) *Display {
	if conf.ChunkSize <= 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	conf.ChunkSize -= conf.ChunkSize % 2
	d := &Display{
		width:  conf.Width,
		height: conf.Height,
		fb:     make([]byte, conf.Width*conf.Height*2),
		chunk:  conf.ChunkSize,
		tx:     sim.NewTx(sink, sim.Async(), sim.WithElemSize(2)),
	}
	d.pacer = dma.NewPacer(d.tx, conf.ChunkSize, dma.PacerConfig{ElemSize: 2})
	return d
}

// Size returns the display dimensions in pixels.
func (d *Display) Size() (int, int) {
	return d.width, d.height
}

// Frames returns the number of frames flushed.
func (d *Display) Frames() uint64 {
	return d.frames
}

// Pacer returns the transmit pacer.
func (d *Display) Pacer() *dma.Pacer {
	return d.pacer
}

// Framebuffer returns the raw big-endian RGB565 framebuffer.
func (d *Display) Framebuffer() []byte {
	return d.fb
}

// Set sets one pixel.
func (d *Display) Set(x, y int, c Color) error {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return ErrOutOfRange
	}
	off := (y*d.width + x) * 2
	d.fb[off], d.fb[off+1] = byte(c>>8), byte(c)
	return nil
}

// At returns one pixel.
func (d *Display) At(x, y int) Color {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return 0
	}
	off := (y*d.width + x) * 2
	return Color(d.fb[off])<<8 | Color(d.fb[off+1])
}

// Fill paints the whole framebuffer.
func (d *Display) Fill(c Color) {
	for off := 0; off < len(d.fb); off += 2 {
		d.fb[off], d.fb[off+1] = byte(c>>8), byte(c)
	}
}

// Flush streams the framebuffer and blocks until the last chunk is out.
// The framebuffer is owned by the transfer until Flush returns.
func (d *Display) Flush(ctx context.Context) error {
	for off := 0; off < len(d.fb); off += d.chunk {
		end := off + d.chunk
		if end > len(d.fb) {
			end = len(d.fb)
		}
		if err := d.pacer.WriteChunk(d.fb[off:end]); err != nil {
			return err
		}
	}
	if err := d.pacer.Flush(ctx); err != nil {
		return err
	}
	if err := d.tx.Err(); err != nil {
		return err
	}
	d.frames++
	return nil
}

// Close stops the transmit channel.
func (d *Display) Close() error {
	d.pacer.Stop()
	return nil
}
