package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
	ch    chan struct{}
}

func newCountingLoader() *countingLoader {
	return &countingLoader{ch: make(chan struct{}, 16)}
}

func (l *countingLoader) Load(context.Context) error {
	l.calls.Add(1)
	select {
	case l.ch <- struct{}{}:
	default:
	}
	return l.err
}

func (l *countingLoader) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load")
	}
}

func TestPoller_LoadsImmediatelyAndOnRefresh(t *testing.T) {
	l := newCountingLoader()
	p := NewPoller(l, 0, nil)

	p.Start(context.Background())
	defer p.Stop()
	l.wait(t)

	p.Refresh()
	l.wait(t)
	assert.Equal(t, int32(2), l.calls.Load())
}

func TestPoller_Interval(t *testing.T) {
	l := newCountingLoader()
	p := NewPoller(l, 10*time.Millisecond, nil)

	p.Start(context.Background())
	l.wait(t)
	l.wait(t)
	l.wait(t)
	p.Stop()

	assert.GreaterOrEqual(t, l.calls.Load(), int32(3))
}

func TestPoller_RecordsLastError(t *testing.T) {
	l := newCountingLoader()
	l.err = errors.New("unreachable")
	p := NewPoller(l, 0, nil)

	p.Start(context.Background())
	l.wait(t)
	p.Stop()

	at, err := p.LastRun()
	assert.False(t, at.IsZero())
	assert.EqualError(t, err, "unreachable")
}

func TestPoller_StartTwiceAndStopTwice(t *testing.T) {
	l := newCountingLoader()
	p := NewPoller(l, 0, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	l.wait(t)
	p.Stop()
	p.Stop()

	assert.Equal(t, int32(1), l.calls.Load())
}

func TestPoller_StopsWhenContextCancelled(t *testing.T) {
	l := newCountingLoader()
	p := NewPoller(l, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	l.wait(t)
	cancel()

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after cancellation")
	}
	assert.Equal(t, int32(1), l.calls.Load())
}

func TestPoller_DrivesCoordinator(t *testing.T) {
	b := seeded(t)
	c := NewCoordinator(b, nil, nil)
	p := NewPoller(c, 0, nil)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateLoaded }, time.Second, 5*time.Millisecond)
	p.Stop()
}
