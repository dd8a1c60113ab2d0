// Package bridge publishes a received stream to message transports.
//
// A Bridge drains the consumer side of a ring from a framework loop and
// publishes, as msgs.Typed payloads relative to the transport's topic
// prefix:
//
//	rx     msgs.Chunk     raw stream bytes
//	frame  msgs.FrameMsg  frames parsed from the stream
//	stats  msgs.RingStats ring counters, periodically
//
// and applies msgs.TxRequest payloads received on "tx" to a writer.
package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/frame"
	fx "github.com/robotalks/pingpong/pkg/framework"
	"github.com/robotalks/pingpong/pkg/msgs"
)

// Topics relative to the transport prefix.
const (
	TopicRx    = "rx"
	TopicFrame = "frame"
	TopicStats = "stats"
	TopicTx    = "tx"
)

// Defaults applied to zero Config fields.
const (
	DefaultChunkSize     = 256
	DefaultStatsInterval = time.Second
)

// Publisher publishes a payload on a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Handler is the callback when a payload is received.
type Handler func(topic string, payload []byte)

// Subscriber delivers payloads received on a topic.
type Subscriber interface {
	Subscribe(topic string, handler Handler) (io.Closer, error)
}

// Config configures a Bridge.
type Config struct {
	// Source is stamped on every published envelope.
	Source string
	// ChunkSize is the largest rx chunk published.
	ChunkSize int
	// StatsInterval is the stats period, never when negative.
	StatsInterval time.Duration
	// Frames enables frame parsing; FrameTimeout drops a partial frame.
	Frames       bool
	FrameTimeout time.Duration
	// Raw disables publishing raw chunks.
	Raw bool
}

// Bridge connects a ring to publishers.
type Bridge struct {
	ring  *dma.Ring
	pacer *dma.Pacer
	tx    io.Writer
	conf  Config

	lock       sync.RWMutex
	publishers []Publisher

	buf       []byte
	offset    uint64
	parser    frame.Parser
	lastData  time.Time
	lastStats time.Time
}

// New creates a Bridge draining ring.
func New(ring *dma.Ring, conf Config) *Bridge {
	if conf.ChunkSize <= 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.StatsInterval == 0 {
		conf.StatsInterval = DefaultStatsInterval
	}
	if conf.FrameTimeout <= 0 {
		conf.FrameTimeout = frame.DefaultTimeout
	}
	return &Bridge{ring: ring, conf: conf, buf: make([]byte, conf.ChunkSize)}
}

// WithTx sets the writer applying TxRequests and the pacer reported in
// stats. Either may be nil.
func (b *Bridge) WithTx(w io.Writer, pacer *dma.Pacer) *Bridge {
	b.tx, b.pacer = w, pacer
	return b
}

// AddPublisher adds publishers.
func (b *Bridge) AddPublisher(pubs ...Publisher) *Bridge {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.publishers = append(b.publishers, pubs...)
	return b
}

// SubscribeTx subscribes the tx topic on s.
func (b *Bridge) SubscribeTx(s Subscriber) (io.Closer, error) {
	return s.Subscribe(TopicTx, b.HandleTx)
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddPoller(fx.PrLvDrain, b).AddWaker(b.ring.Consumer())
}

// Poll implements framework.Poller: it drains the ring and publishes.
func (b *Bridge) Poll(ctx context.Context, now time.Time) error {
	var errs fx.AggregatedError
	for {
		n := b.ring.Consumer().TryRead(b.buf)
		if n == 0 {
			break
		}
		data := b.buf[:n]
		b.lastData = now
		if !b.conf.Raw {
			errs.Add(b.publish(TopicRx, &msgs.Chunk{Offset: b.offset, Data: data}))
		}
		b.offset += uint64(n)
		if b.conf.Frames {
			for _, c := range data {
				if r := b.parser.Parse(c); r.Frame != nil {
					errs.Add(b.publish(TopicFrame, &msgs.FrameMsg{
						Seq:  uint32(r.Frame.Seq),
						Code: uint32(r.Frame.Code),
						Data: r.Frame.Data,
					}))
				}
			}
		}
	}
	if b.conf.Frames && b.parser.State().IsReceiving() && now.Sub(b.lastData) >= b.conf.FrameTimeout {
		if r := b.parser.Idle(); r.Err != nil {
			glog.V(2).Infof("bridge: %v, dropped %d bytes", r.Err, r.Dropped)
		}
	}
	if b.conf.StatsInterval > 0 && now.Sub(b.lastStats) >= b.conf.StatsInterval {
		b.lastStats = now
		errs.Add(b.PublishStats())
	}
	return errs.Aggregate()
}

// PublishStats publishes a stats snapshot.
func (b *Bridge) PublishStats() error {
	return b.publish(TopicStats, msgs.NewRingStats(b.ring, b.pacer))
}

// FrameStats returns the frame parser counters.
func (b *Bridge) FrameStats() frame.Stats {
	return b.parser.Stats()
}

// HandleTx applies an encoded TxRequest.
func (b *Bridge) HandleTx(topic string, payload []byte) {
	msg, _, err := msgs.Decode(payload)
	if err != nil {
		glog.Warningf("bridge: decode %s: %v", topic, err)
		return
	}
	req, ok := msg.(*msgs.TxRequest)
	if !ok {
		glog.Warningf("bridge: unexpected %T on %s", msg, topic)
		return
	}
	if b.tx == nil || len(req.Data) == 0 {
		return
	}
	if _, err := b.tx.Write(req.Data); err != nil {
		glog.Errorf("bridge: tx %d bytes: %v", len(req.Data), err)
	}
}

func (b *Bridge) publish(topic string, msg msgs.SerializableMessage) error {
	payload, err := msgs.Encode(msg, b.conf.Source)
	if err != nil {
		return err
	}
	b.lock.RLock()
	pubs := b.publishers
	b.lock.RUnlock()
	var errs fx.AggregatedError
	for _, p := range pubs {
		errs.Add(p.Publish(topic, payload))
	}
	return errs.Aggregate()
}
