package bridge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pingpong/pkg/dma"
	"github.com/robotalks/pingpong/pkg/dma/sim"
	"github.com/robotalks/pingpong/pkg/frame"
	"github.com/robotalks/pingpong/pkg/msgs"
)

type published struct {
	topic string
	msg   msgs.SerializableMessage
}

type testPublisher struct {
	t    *testing.T
	msgs []published
	err  error
}

func (p *testPublisher) Publish(topic string, payload []byte) error {
	msg, typed, err := msgs.Decode(payload)
	require.NoError(p.t, err)
	require.Equal(p.t, "dev0", typed.Source)
	p.msgs = append(p.msgs, published{topic: topic, msg: msg})
	return p.err
}

func (p *testPublisher) topic(topic string) []msgs.SerializableMessage {
	var out []msgs.SerializableMessage
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m.msg)
		}
	}
	return out
}

func newTestBridge(t *testing.T, conf Config) (*Bridge, *sim.Engine, *testPublisher) {
	e := sim.NewRx()
	r := dma.NewRing(e, make([]byte, 16), make([]byte, 16), dma.Config{Mode: dma.ModePingPong})
	conf.Source = "dev0"
	pub := &testPublisher{t: t}
	return New(r, conf).AddPublisher(pub), e, pub
}

func TestBridgeChunksAndStats(t *testing.T) {
	b, e, pub := newTestBridge(t, Config{ChunkSize: 8, StatsInterval: time.Minute})
	e.Feed([]byte("0123456789abcdefXYZ"))
	e.Idle()

	now := time.Now()
	require.NoError(t, b.Poll(context.Background(), now))
	require.Equal(t, []msgs.SerializableMessage{
		&msgs.Chunk{Offset: 0, Data: []byte("01234567")},
		&msgs.Chunk{Offset: 8, Data: []byte("89abcdef")},
		&msgs.Chunk{Offset: 16, Data: []byte("XYZ")},
	}, pub.topic(TopicRx))
	stats := pub.topic(TopicStats)
	require.Len(t, stats, 1)
	require.EqualValues(t, 19, stats[0].(*msgs.RingStats).Consumed)

	// No data and stats not due.
	require.NoError(t, b.Poll(context.Background(), now.Add(time.Second)))
	require.Len(t, pub.msgs, 4)
	require.NoError(t, b.Poll(context.Background(), now.Add(time.Minute)))
	require.Len(t, pub.topic(TopicStats), 2)
}

func TestBridgeFrames(t *testing.T) {
	b, e, pub := newTestBridge(t, Config{Frames: true, Raw: true, StatsInterval: -1, FrameTimeout: time.Second})
	f1 := (&frame.Frame{Seq: 1, Code: 2, Data: []byte("hello world")}).Bytes()
	f2 := (&frame.Frame{Seq: 2, Code: 3}).Bytes()
	stream := append(append([]byte{}, f1...), f2[:2]...)

	now := time.Now()
	e.Feed(stream)
	e.Idle()
	require.NoError(t, b.Poll(context.Background(), now))
	e.Feed(f2[2:])
	e.Idle()
	require.NoError(t, b.Poll(context.Background(), now))

	require.Equal(t, []msgs.SerializableMessage{
		&msgs.FrameMsg{Seq: 1, Code: 2, Data: []byte("hello world")},
		&msgs.FrameMsg{Seq: 2, Code: 3},
	}, pub.topic(TopicFrame))
	require.Empty(t, pub.topic(TopicRx))
	require.Empty(t, pub.topic(TopicStats))

	// A partial frame is dropped once the stream stays quiet.
	e.Feed(f1[:5])
	e.Idle()
	require.NoError(t, b.Poll(context.Background(), now))
	require.NoError(t, b.Poll(context.Background(), now.Add(2*time.Second)))
	require.EqualValues(t, 1, b.FrameStats().Truncated)
}

func TestBridgePublishError(t *testing.T) {
	b, e, pub := newTestBridge(t, Config{StatsInterval: -1})
	pub.err = errors.New("offline")
	e.Feed([]byte("x"))
	e.Idle()
	require.EqualError(t, b.Poll(context.Background(), time.Now()), "offline")
}

func TestBridgeHandleTx(t *testing.T) {
	var tx bytes.Buffer
	b, _, _ := newTestBridge(t, Config{})
	b.WithTx(&tx, nil)

	payload, err := msgs.Encode(&msgs.TxRequest{Data: []byte("ping")}, "")
	require.NoError(t, err)
	b.HandleTx(TopicTx, payload)
	require.Equal(t, "ping", tx.String())

	payload, err = msgs.Encode(&msgs.Chunk{Data: []byte("nope")}, "")
	require.NoError(t, err)
	b.HandleTx(TopicTx, payload)
	b.HandleTx(TopicTx, []byte{0xff})
	require.Equal(t, "ping", tx.String())
}
