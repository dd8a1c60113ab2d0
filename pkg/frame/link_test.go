package frame

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testStream struct {
	readCh  chan []byte
	lock    sync.Mutex
	written bytes.Buffer
}

func newTestStream() *testStream {
	return &testStream{readCh: make(chan []byte, 16)}
}

func (s *testStream) Read(p []byte) (int, error) {
	b, ok := <-s.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (s *testStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.written.Write(p)
}

func (s *testStream) Written() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte(nil), s.written.Bytes()...)
}

func TestLinkReceive(t *testing.T) {
	s := newTestStream()
	l := NewLink(s)
	l.Timeout = 10 * time.Millisecond
	frameCh := make(chan *Frame, 8)
	l.Handler = HandleFrameFunc(func(ctx context.Context, f *Frame) {
		frameCh <- f
	})
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(context.Background()) }()

	f1 := &Frame{Seq: 1, Code: 0x01, Data: []byte("hi")}
	f2 := &Frame{Seq: 2, Code: 0x02, Data: []byte("a longer payload")}
	s.readCh <- append(f1.Bytes(), f2.Bytes()...)
	require.Equal(t, f1, <-frameCh)
	require.Equal(t, f2, <-frameCh)

	f3 := &Frame{Seq: 3, Code: 0x03, Data: []byte{1, 2, 3, 4}}
	encoded := f3.Bytes()
	s.readCh <- encoded[:3]
	s.readCh <- encoded[3:]
	require.Equal(t, f3, <-frameCh)

	s.readCh <- (&Frame{Seq: 4, Data: []byte{9, 9}}).Bytes()[:3]
	require.Eventually(t, func() bool {
		return l.Stats().Truncated == 1
	}, 5*time.Second, time.Millisecond)

	f5 := &Frame{Seq: 5, Code: 0x05}
	s.readCh <- f5.Bytes()
	require.Equal(t, f5, <-frameCh)

	close(s.readCh)
	require.NoError(t, <-runErr)
	stats := l.Stats()
	require.EqualValues(t, 4, stats.Frames)
	require.EqualValues(t, 3, stats.Dropped)
	require.EqualValues(t, 1, stats.Gaps)
}

func TestLinkRunCanceled(t *testing.T) {
	l := NewLink(newTestStream())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, l.Run(ctx))
}

func TestLinkSend(t *testing.T) {
	s := newTestStream()
	l := NewLink(s)
	f1, err := l.Send(0x01, []byte{1, 2})
	require.NoError(t, err)
	f2, err := l.Send(0x02, nil)
	require.NoError(t, err)
	require.Equal(t, f1.Seq.Next(), f2.Seq)
	require.Equal(t, append(f1.Bytes(), f2.Bytes()...), s.Written())

	_, err = l.Send(0x03, make([]byte, MaxDataLen+1))
	require.Equal(t, &LengthError{Len: MaxDataLen + 1}, err)
	f3, err := l.Send(0x03, nil)
	require.NoError(t, err)
	require.Equal(t, f2.Seq.Next(), f3.Seq)
}
