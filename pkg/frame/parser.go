package frame

// State indicates the state of the receiver.
type State int

const (
	// StateIdle means waiting for a Start byte.
	StateIdle State = iota
	// StateReceiving means in the middle of a frame.
	StateReceiving
)

// IsReceiving indicates if it's in the middle of a frame.
func (s State) IsReceiving() bool {
	return s == StateReceiving
}

// TimerAction defines what to do with the idle timer.
type TimerAction int

const (
	// TimerNoChange indicates keep the timer as-is.
	TimerNoChange TimerAction = iota
	// TimerRestart to restart the timer.
	TimerRestart
	// TimerStop to stop/cancel the timer.
	TimerStop
)

// Result indicates the result after one parsing step.
type Result struct {
	State   State
	Frame   *Frame
	Dropped int
	Err     error
}

// WhatAboutTimer decides what to do with the idle timer.
func (r Result) WhatAboutTimer() TimerAction {
	if r.State.IsReceiving() {
		return TimerRestart
	}
	return TimerStop
}

// Stats counts parser events.
type Stats struct {
	Frames    uint64
	Dropped   uint64 // bytes
	Checksum  uint64
	Truncated uint64
	Gaps      uint64
}

type parseState int

const (
	stateStart parseState = iota // waiting for Start
	stateSeq                     // waiting for seq
	stateCode                    // waiting for code
	stateLen                     // waiting for explicit length
	stateData                    // waiting for data
	stateSum                     // waiting for checksum
)

// Parser parses bytes received.
type Parser struct {
	state  parseState
	frame  *Frame
	recv   int
	sum    byte
	taken  int
	expect Seq
	stats  Stats
}

// State gets the current state.
func (p *Parser) State() State {
	if p.state == stateStart {
		return StateIdle
	}
	return StateReceiving
}

// Stats returns the counters.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Reset drops any partial frame and forgets the expected sequence.
func (p *Parser) Reset() {
	p.state, p.frame, p.taken = stateStart, nil, 0
	p.expect = 0
}

// Idle notifies the line went idle. A partial frame is dropped.
func (p *Parser) Idle() (r Result) {
	if p.state != stateStart {
		r.Dropped, r.Err = p.taken, ErrTruncated
		p.stats.Truncated++
		p.stats.Dropped += uint64(p.taken)
		p.state, p.frame, p.taken = stateStart, nil, 0
	}
	r.State = p.State()
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (r Result) {
	r = p.parseByte(b)
	r.State = p.State()
	return
}

func (p *Parser) parseByte(b byte) (r Result) {
	if p.state == stateStart {
		if b != Start {
			p.stats.Dropped++
			return Result{Dropped: 1}
		}
		p.state, p.taken, p.sum = stateSeq, 1, 0
		return
	}
	p.taken++
	switch p.state {
	case stateSeq:
		seq := Seq(b)
		if !seq.IsValid() {
			return p.fail(b, ErrInvalidSeq)
		}
		p.frame = &Frame{Seq: seq}
		p.sum ^= b
		p.state = stateCode
	case stateCode:
		p.sum ^= b
		p.frame.Code = b & 0x8f
		switch dataLen := int(b>>4) & 7; dataLen {
		case 0:
			p.state = stateSum
		case 7:
			p.state = stateLen
		default:
			p.frame.Data, p.recv = make([]byte, dataLen), 0
			p.state = stateData
		}
	case stateLen:
		if b > MaxDataLen {
			return p.fail(b, &LengthError{Len: int(b)})
		}
		p.sum ^= b
		if b == 0 {
			p.state = stateSum
			break
		}
		p.frame.Data, p.recv = make([]byte, b), 0
		p.state = stateData
	case stateData:
		p.frame.Data[p.recv] = b
		p.sum ^= b
		p.recv++
		if p.recv >= len(p.frame.Data) {
			p.state = stateSum
		}
	case stateSum:
		if b != p.sum {
			p.stats.Checksum++
			return p.fail(b, ErrChecksum)
		}
		return p.frameReady()
	}
	return
}

// fail drops the partial frame. The offending byte starts a new frame if it
// is a Start byte.
func (p *Parser) fail(b byte, err error) Result {
	r := Result{Dropped: p.taken, Err: err}
	p.state, p.frame, p.taken = stateStart, nil, 0
	if b == Start {
		r.Dropped--
		p.state, p.taken, p.sum = stateSeq, 1, 0
	}
	p.stats.Dropped += uint64(r.Dropped)
	return r
}

func (p *Parser) frameReady() Result {
	f := p.frame
	if p.expect.IsValid() && f.Seq != p.expect {
		p.stats.Gaps++
	}
	p.expect = f.Seq.Next()
	p.stats.Frames++
	p.state, p.frame, p.taken = stateStart, nil, 0
	return Result{Frame: f}
}
