package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/periph/lcd"
)

var (
	bus     = 0
	cs      = 0
	speed   = uint(32000000)
	width   = 240
	height  = 240
	chunk   = lcd.DefaultChunkSize
	color   = "0xf800"
	timeout = 5 * time.Second
)

func init() {
	flag.IntVar(&bus, "bus", bus, "SPI bus.")
	flag.IntVar(&cs, "cs", cs, "SPI chip select.")
	flag.UintVar(&speed, "speed", speed, "SPI clock in Hz.")
	flag.IntVar(&width, "width", width, "Display width.")
	flag.IntVar(&height, "height", height, "Display height.")
	flag.IntVar(&chunk, "chunk", chunk, "Transfer chunk size in bytes.")
	flag.StringVar(&color, "color", color, "RGB565 fill color.")
	flag.DurationVar(&timeout, "timeout", timeout, "Flush timeout.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	c, err := strconv.ParseUint(color, 0, 16)
	if err != nil {
		glog.Exit(err)
	}
	dev, err := lcd.OpenSPIDev(bus, cs, uint32(speed))
	if err != nil {
		glog.Exit(err)
	}
	defer dev.Close()

	d := lcd.New(dev, lcd.Config{Width: width, Height: height, ChunkSize: chunk})
	defer d.Close()
	d.Fill(lcd.Color(c))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	if err := d.Flush(ctx); err != nil {
		glog.Exit(err)
	}
	st := d.Pacer().Stats()
	glog.Infof("flushed %d bytes in %d chunks, %v", st.Sent, st.Chunks, time.Since(start))
}
