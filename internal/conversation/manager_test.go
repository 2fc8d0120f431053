package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerReusesOpenView(t *testing.T) {
	m := NewManager(newFakeSource(), Options{FallbackInterval: time.Hour})
	defer m.CloseAll()

	a, err := m.Open(context.Background(), "t1")
	require.NoError(t, err)
	b, err := m.Open(context.Background(), "t1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Live())
}

func TestManagerOpenCloseLeavesNothingLive(t *testing.T) {
	src := newFakeSource(msg(1, 0))
	m := NewManager(src, Options{FallbackInterval: 5 * time.Millisecond})

	const n = 25
	views := make([]*View, 0, n)
	for i := 0; i < n; i++ {
		v, err := m.Open(context.Background(), fmt.Sprintf("c%d", i))
		require.NoError(t, err)
		views = append(views, v)
	}
	assert.Equal(t, n, m.Live())
	assert.Equal(t, int32(n), src.openStreams.Load())

	for i := 0; i < n/2; i++ {
		m.Close(fmt.Sprintf("c%d", i))
	}
	views[n-1].Close()
	m.CloseAll()

	assert.Zero(t, m.Live())
	assert.Zero(t, src.openStreams.Load())
	for _, v := range views {
		select {
		case <-v.Done():
		default:
			t.Fatalf("view %s still running", v.CounterpartID())
		}
	}

	polls := src.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, src.polls.Load())
}

func TestManagerReopensAfterClose(t *testing.T) {
	m := NewManager(newFakeSource(), Options{FallbackInterval: time.Hour})
	a, err := m.Open(context.Background(), "t1")
	require.NoError(t, err)
	m.Close("t1")

	b, err := m.Open(context.Background(), "t1")
	require.NoError(t, err)
	defer m.CloseAll()
	assert.NotSame(t, a, b)
}

// gatedSource holds Subscribe for one counterpart until gate is closed.
type gatedSource struct {
	*fakeSource
	slow    string
	gate    chan struct{}
	entered chan struct{}
	subs    sync.Map
}

func (g *gatedSource) Subscribe(ctx context.Context, counterpartID string) (Stream, error) {
	if counterpartID == g.slow {
		if _, loaded := g.subs.LoadOrStore(counterpartID, true); !loaded {
			close(g.entered)
		}
		<-g.gate
	}
	return g.fakeSource.Subscribe(ctx, counterpartID)
}

func TestManagerOpenDoesNotBlockOtherCounterparts(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(msg(1, 0)), slow: "slow", gate: make(chan struct{}), entered: make(chan struct{})}
	m := NewManager(src, Options{FallbackInterval: time.Hour})
	defer m.CloseAll()

	type result struct {
		v   *View
		err error
	}
	first := make(chan result, 1)
	go func() {
		v, err := m.Open(context.Background(), "slow")
		first <- result{v, err}
	}()
	<-src.entered

	second := make(chan result, 1)
	go func() {
		v, err := m.Open(context.Background(), "slow")
		second <- result{v, err}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Zero(t, m.Live())
		v, err := m.Open(context.Background(), "fast")
		assert.NoError(t, err)
		assert.NotNil(t, v)
		assert.Equal(t, 1, m.Live())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager blocked behind a pending open")
	}

	close(src.gate)
	a := <-first
	b := <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.v, b.v)
	assert.Equal(t, 2, m.Live())
	assert.Equal(t, int32(2), src.openStreams.Load())
}

func TestManagerCloseWhileOpening(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(), slow: "slow", gate: make(chan struct{}), entered: make(chan struct{})}
	m := NewManager(src, Options{FallbackInterval: time.Hour})

	errs := make(chan error, 1)
	go func() {
		_, err := m.Open(context.Background(), "slow")
		errs <- err
	}()
	<-src.entered

	m.Close("slow")
	close(src.gate)

	assert.ErrorIs(t, <-errs, ErrClosed)
	assert.Zero(t, m.Live())
	assert.Zero(t, src.openStreams.Load())
}

func TestManagerWaiterHonoursContext(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(), slow: "slow", gate: make(chan struct{}), entered: make(chan struct{})}
	m := NewManager(src, Options{FallbackInterval: time.Hour})
	defer m.CloseAll()

	go func() { _, _ = m.Open(context.Background(), "slow") }()
	<-src.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Open(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(src.gate)
}
