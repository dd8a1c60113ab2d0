package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"math"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/pingpong/pkg/framework"
	"github.com/robotalks/pingpong/pkg/periph/pcm"
)

var (
	freq     = 440.0
	rate     = 8000
	half     = 256
	period   = 64
	duration = 2 * time.Second
)

func init() {
	flag.Float64Var(&freq, "freq", freq, "Tone frequency in Hz.")
	flag.IntVar(&rate, "rate", rate, "Sample rate in Hz.")
	flag.IntVar(&half, "half", half, "Half size in samples.")
	flag.IntVar(&period, "period", period, "Samples per source period.")
	flag.DurationVar(&duration, "duration", duration, "Capture duration.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	tone := &pcm.Tone{Freq: freq, Rate: float64(rate), Amplitude: math.MaxInt16 / 2}
	c := pcm.New(tone, pcm.Config{
		Rate:        rate,
		HalfSamples: half,
		Period:      period,
		Paced:       true,
		IdleTime:    time.Duration(period) * time.Second / time.Duration(rate),
	})
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	err := fx.NewRunnerWith(ctx).HandleSignals().Run(
		fx.NamedRun("capture", c),
		fx.NamedRun("reader", fx.RunFunc(func(ctx context.Context) error {
			buf := make([]int16, half)
			for {
				n, err := c.ReadSamples(ctx, buf)
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				var sum float64
				for _, s := range buf[:n] {
					sum += float64(s) * float64(s)
				}
				glog.Infof("%d samples, rms %.1f", n, math.Sqrt(sum/float64(n)))
			}
		})),
	)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		glog.Exit(err)
	}
	st := c.Ring().Stats()
	glog.Infof("completions=%d timeouts=%d overruns=%d", st.Completions, st.Timeouts, st.Overruns)
}
