package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type parserTestStep struct {
	in      []byte
	idle    bool
	frame   *Frame
	dropped int
	err     error
}

type parserTestSequenceBuilder struct {
	steps []parserTestStep
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.steps = append(b.steps, parserTestStep{in: in})
	return b
}

func (b *parserTestSequenceBuilder) onFrame(f *Frame) *parserTestSequenceBuilder {
	return b.on(f.Bytes()...).frameOut(f)
}

func (b *parserTestSequenceBuilder) timeout() *parserTestSequenceBuilder {
	b.steps = append(b.steps, parserTestStep{idle: true})
	return b
}

func (b *parserTestSequenceBuilder) frameOut(f *Frame) *parserTestSequenceBuilder {
	b.steps[len(b.steps)-1].frame = f
	return b
}

func (b *parserTestSequenceBuilder) drops(n int, err error) *parserTestSequenceBuilder {
	b.steps[len(b.steps)-1].dropped = n
	b.steps[len(b.steps)-1].err = err
	return b
}

func (b *parserTestSequenceBuilder) run(t *testing.T, p *Parser) {
	for n, step := range b.steps {
		var frame *Frame
		var dropped int
		var err error
		collect := func(r Result) {
			if r.Frame != nil {
				require.Nil(t, frame, fmt.Sprintf("step %d: more than one frame", n))
				frame = r.Frame
			}
			dropped += r.Dropped
			if r.Err != nil {
				err = r.Err
			}
		}
		if step.idle {
			collect(p.Idle())
		}
		for _, c := range step.in {
			collect(p.Parse(c))
		}
		require.Equal(t, step.frame, frame, fmt.Sprintf("step %d", n))
		require.Equal(t, step.dropped, dropped, fmt.Sprintf("step %d", n))
		require.Equal(t, step.err, err, fmt.Sprintf("step %d", n))
	}
}

func TestParserFrames(t *testing.T) {
	var p Parser
	parserTestSequences().
		onFrame(&Frame{Seq: 1, Code: 0x01}).
		onFrame(&Frame{Seq: 2, Code: 0x82, Data: []byte{0xa5, 0x00}}).
		onFrame(&Frame{Seq: 3, Code: 0x0f, Data: []byte("the quick brown fox")}).
		run(t, &p)
	require.Equal(t, StateIdle, p.State())
	stats := p.Stats()
	require.EqualValues(t, 3, stats.Frames)
	require.Zero(t, stats.Dropped)
	require.Zero(t, stats.Gaps)
}

func TestParserNoise(t *testing.T) {
	var p Parser
	parserTestSequences().
		on(0x00, 0x13, 0xff).drops(3, nil).
		onFrame(&Frame{Seq: 5, Code: 0x03, Data: []byte{1}}).
		run(t, &p)
	require.EqualValues(t, 3, p.Stats().Dropped)
}

func TestParserChecksum(t *testing.T) {
	var p Parser
	bad := (&Frame{Seq: 1, Code: 0x01, Data: []byte{1, 2}}).Bytes()
	bad[len(bad)-1] ^= 0x40
	parserTestSequences().
		on(bad...).drops(len(bad), ErrChecksum).
		onFrame(&Frame{Seq: 2, Code: 0x01}).
		run(t, &p)
	require.EqualValues(t, 1, p.Stats().Checksum)
}

func TestParserInvalidSeq(t *testing.T) {
	var p Parser
	parserTestSequences().
		on(Start, 0xf5).drops(2, ErrInvalidSeq).
		onFrame(&Frame{Seq: 7, Code: 0x02}).
		run(t, &p)
}

func TestParserResyncOnStart(t *testing.T) {
	var p Parser
	good := (&Frame{Seq: 7, Code: 0x02}).Bytes()
	parserTestSequences().
		on(Start, 0x01, 0x01).
		on(good...).drops(3, ErrChecksum).frameOut(&Frame{Seq: 7, Code: 0x02}).
		run(t, &p)
}

func TestParserLength(t *testing.T) {
	var p Parser
	parserTestSequences().
		on(Start, 0x01, 0x71, 0x80).drops(4, &LengthError{Len: 0x80}).
		run(t, &p)
	require.Equal(t, StateIdle, p.State())
}

func TestParserIdleDropsPartial(t *testing.T) {
	var p Parser
	full := (&Frame{Seq: 1, Code: 0x01, Data: []byte{9, 8, 7}}).Bytes()
	parserTestSequences().
		on(full[:4]...).
		timeout().drops(4, ErrTruncated).
		timeout().
		onFrame(&Frame{Seq: 2, Code: 0x01}).
		run(t, &p)
	require.EqualValues(t, 1, p.Stats().Truncated)
}

func TestParserIdleState(t *testing.T) {
	var p Parser
	r := p.Parse(Start)
	require.Equal(t, StateReceiving, r.State)
	require.Equal(t, TimerRestart, r.WhatAboutTimer())
	r = p.Idle()
	require.Equal(t, StateIdle, r.State)
	require.Equal(t, TimerStop, r.WhatAboutTimer())
}

func TestParserGaps(t *testing.T) {
	var p Parser
	parserTestSequences().
		onFrame(&Frame{Seq: 1}).
		onFrame(&Frame{Seq: 2}).
		onFrame(&Frame{Seq: 4}).
		run(t, &p)
	require.EqualValues(t, 1, p.Stats().Gaps)
	p.Reset()
	parserTestSequences().onFrame(&Frame{Seq: 9}).run(t, &p)
	require.EqualValues(t, 1, p.Stats().Gaps)
}
