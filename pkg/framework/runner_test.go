package framework

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())

	errA, errB := errors.New("a"), errors.New("b")
	err := errs.Add(errA).Aggregate()
	require.EqualError(t, err, "a")
	err = errs.Add(nil, errB).Aggregate()
	require.EqualError(t, err, "multiple errors:\n  a\n  b")
	require.True(t, errors.Is(err, errB))
}

func TestRunnerWait(t *testing.T) {
	errFail := errors.New("fail")
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)
	r.Go(
		NamedRun("canceled", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		RunFunc(func(ctx context.Context) error { return errFail }),
		RunFunc(func(ctx context.Context) error { return nil }),
	)
	require.Len(t, r.Runners, 3)
	require.Equal(t, "canceled", r.Runners[0].(Named).Name())
	cancel()
	err := r.Wait()
	require.EqualError(t, err, "fail")
}

func TestRunWithContext(t *testing.T) {
	require.NoError(t, RunWithContext(context.Background(), func() error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	cancel()
	err := RunWithContextCancel(ctx, func() { close(stop) }, func() error {
		<-stop
		return nil
	})
	require.Equal(t, context.Canceled, err)
}

type testCloser struct {
	closed int
}

func (c *testCloser) Close() error {
	c.closed++
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	var c testCloser
	err := RunWithContextCloser(context.Background(), &c, func() error { return io.EOF })
	require.Equal(t, io.EOF, err)
	require.Equal(t, 1, c.closed)
}
