package sh

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/sim"
)

// DefaultCapacity is the half size of a new simulator.
const DefaultCapacity = 128

// ErrUnknownMode indicates a mode name which is neither basic nor pingpong.
var ErrUnknownMode = errors.New("unknown mode, expect basic or pingpong")

// Status is a snapshot of the simulated ring.
type Status struct {
	Capacity  int       `json:"capacity"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Active    string    `json:"active"`
	Head      int       `json:"head"`
	Tail      int       `json:"tail"`
	Available int       `json:"available"`
	Pending   int       `json:"pending"`
	Dropped   uint64    `json:"dropped"`
	Stopped   bool      `json:"stopped"`
	Rx        dma.Stats `json:"rx"`
	Tx        dma.Stats `json:"tx"`
}

// String implements fmt.Stringer.
func (s Status) String() string {
	var w strings.Builder
	fmt.Fprintf(&w, "%s cap=%d state=%s active=%s", s.Mode, s.Capacity, s.State, s.Active)
	if s.Stopped {
		w.WriteString(" stopped")
	}
	fmt.Fprintf(&w, "\nhead=%d tail=%d available=%d pending=%d dropped=%d",
		s.Head, s.Tail, s.Available, s.Pending, s.Dropped)
	fmt.Fprintf(&w, "\nrx: completions=%d timeouts=%d spurious=%d overruns=%d exposed=%d consumed=%d",
		s.Rx.Completions, s.Rx.Timeouts, s.Rx.Spurious, s.Rx.Overruns, s.Rx.Exposed, s.Rx.Consumed)
	fmt.Fprintf(&w, "\ntx: chunks=%d completions=%d sent=%d", s.Tx.Chunks, s.Tx.Completions, s.Tx.Sent)
	return w.String()
}

// Sim is a receive ring and a transmit pacer on simulated engines, stepped
// by hand.
type Sim struct {
	rx    *sim.Engine
	ring  *dma.Ring
	mode  dma.Mode
	tx    *sim.Engine
	pacer *dma.Pacer
	out   bytes.Buffer
}

// NewSim creates a simulator with halves of capacity bytes.
func NewSim(capacity int, mode dma.Mode) *Sim {
	s := &Sim{}
	s.tx = sim.NewTx(&s.out)
	s.pacer = dma.NewPacer(s.tx, capacity, dma.PacerConfig{})
	s.Reconfigure(capacity, mode)
	return s
}

// ParseMode parses a mode name.
func ParseMode(name string) (dma.Mode, error) {
	switch strings.ToLower(name) {
	case "basic":
		return dma.ModeBasic, nil
	case "pingpong", "ping-pong", "pp":
		return dma.ModePingPong, nil
	}
	return dma.ModeBasic, ErrUnknownMode
}

// Reconfigure replaces the receive ring. Unread bytes are lost.
func (s *Sim) Reconfigure(capacity int, mode dma.Mode) {
	if s.ring != nil {
		s.ring.Stop()
	}
	s.rx = sim.NewRx()
	s.mode = mode
	s.ring = dma.NewRing(s.rx, make([]byte, capacity), make([]byte, capacity), dma.Config{Mode: mode})
}

// Ring returns the receive ring.
func (s *Sim) Ring() *dma.Ring {
	return s.ring
}

// Feed delivers bytes to the receive engine and returns the bytes accepted.
func (s *Sim) Feed(p []byte) int {
	return s.rx.Feed(p)
}

// Complete fills the rest of the live descriptor with fill, raising its
// completion. It returns the bytes fed.
func (s *Sim) Complete(fill byte) int {
	if !s.rx.Enabled() {
		return 0
	}
	n := s.rx.Remaining(s.rx.Active())
	if n == 0 {
		return 0
	}
	return s.rx.Feed(bytes.Repeat([]byte{fill}, n))
}

// Timeout raises the idle interrupt.
func (s *Sim) Timeout() {
	s.rx.Idle()
}

// Read copies out at most n exposed bytes.
func (s *Sim) Read(n int) []byte {
	if n <= 0 {
		n = s.ring.Size()
	}
	buf := make([]byte, n)
	return buf[:s.ring.Consumer().TryRead(buf)]
}

// Reset re-arms the ring with empty halves.
func (s *Sim) Reset() {
	s.ring.Reset()
}

// Stop stops the receive ring.
func (s *Sim) Stop() {
	s.ring.Stop()
}

// Transmit sends p through the pacer, one chunk per completion, and returns
// what the transmit engine delivered and the chunks used.
func (s *Sim) Transmit(p []byte) ([]byte, int, error) {
	s.out.Reset()
	chunks := 0
	src := bytes.NewReader(p)
	s.pacer.Restart()
	for {
		if s.pacer.Pump(dma.SourceFunc(func(b []byte) int {
			n, _ := src.Read(b)
			return n
		})) == 0 {
			break
		}
		chunks++
		for s.pacer.Busy() {
			if _, err := s.tx.Transmit(); err != nil {
				return s.out.Bytes(), chunks, err
			}
		}
	}
	return s.out.Bytes(), chunks, nil
}

// Status returns a snapshot.
func (s *Sim) Status() Status {
	ch := s.ring.Channel()
	return Status{
		Capacity:  s.ring.Capacity(),
		Mode:      s.mode.String(),
		State:     ch.State().String(),
		Active:    ch.Active().String(),
		Head:      s.ring.Head(),
		Tail:      s.ring.Tail(),
		Available: s.ring.Consumer().Available(),
		Pending:   s.ring.Producer().Pending(),
		Dropped:   s.rx.Dropped(),
		Stopped:   s.ring.Stopped(),
		Rx:        s.ring.Stats(),
		Tx:        s.pacer.Stats(),
	}
}
