package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"encoding/hex"
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/env"
	"github.com/robotalks/pingpong/pkg/frame"
	fx "github.com/robotalks/pingpong/pkg/framework"
	"github.com/robotalks/pingpong/pkg/periph/uart"
)

var (
	send     string
	interval time.Duration
)

func init() {
	env.SetupFlags()
	flag.StringVar(&send, "send", send, "Frame to send as CODE:HEXDATA, e.g. 1:0a0b.")
	flag.DurationVar(&interval, "interval", interval, "Repeat sending at this interval.")
}

func parseFrame(s string) (byte, []byte, error) {
	codeStr, dataStr, _ := strings.Cut(s, ":")
	code, err := strconv.ParseUint(codeStr, 0, 8)
	if err != nil {
		return 0, nil, err
	}
	data, err := hex.DecodeString(dataStr)
	return byte(code), data, err
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.Default()
	if conf.Serial == "" {
		glog.Exit(env.ErrNoSerial)
	}
	port, err := uart.Open(conf.UART())
	if err != nil {
		glog.Exit(err)
	}
	defer port.Close()

	link := frame.NewLink(port)
	link.Handler = frame.HandleFrameFunc(func(ctx context.Context, f *frame.Frame) {
		glog.Infof("RECV seq=%02x code=%x data=%s", byte(f.Seq), f.Code, hex.EncodeToString(f.Data))
	})
	runners := []fx.Runnable{
		fx.NamedRun("uart", fx.RunFunc(port.Run)),
		fx.NamedRun("link", link),
	}
	if send != "" {
		code, data, err := parseFrame(send)
		if err != nil {
			glog.Exit(err)
		}
		runners = append(runners, fx.NamedRun("send", fx.RunFunc(func(ctx context.Context) error {
			for {
				f, err := link.Send(code, data)
				if err != nil {
					return err
				}
				glog.Infof("SEND seq=%02x code=%x", byte(f.Seq), f.Code)
				if interval <= 0 {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(interval):
				}
			}
		})))
	}
	if err := fx.NewRunner().HandleSignals().Run(runners...); err != nil {
		glog.Error(err)
	}
	st := link.Stats()
	glog.Infof("frames=%d dropped=%d checksum=%d truncated=%d", st.Frames, st.Dropped, st.Checksum, st.Truncated)
}
