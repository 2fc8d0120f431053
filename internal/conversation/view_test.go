package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/models"
)

type fakeStream struct {
	ch     chan models.Message
	once   sync.Once
	source *fakeSource
}

func (s *fakeStream) Messages() <-chan models.Message { return s.ch }

func (s *fakeStream) Close() error {
	s.once.Do(func() { s.source.openStreams.Add(-1) })
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	server   []models.Message
	nextID   int64
	streams  []*fakeStream
	failSub  bool
	histErr  error
	polls    atomic.Int32
	marked   atomic.Int32
	echoSend bool

	openStreams atomic.Int32
}

func newFakeSource(history ...models.Message) *fakeSource {
	f := &fakeSource{server: history, nextID: 100}
	return f
}

func (f *fakeSource) History(ctx context.Context, counterpartID string) ([]models.Message, error) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	out := make([]models.Message, len(f.server))
	copy(out, f.server)
	return out, nil
}

func (f *fakeSource) Send(ctx context.Context, counterpartID, content string) (*models.Message, error) {
	f.mu.Lock()
	f.nextID++
	m := models.Message{ID: f.nextID, TeacherID: "t1", StudentID: "s1", SenderID: "s1", Content: content, CreatedAt: base.Add(time.Duration(f.nextID) * time.Second)}
	f.server = append(f.server, m)
	f.mu.Unlock()
	if f.echoSend {
		f.push(m)
	}
	return &m, nil
}

func (f *fakeSource) MarkRead(ctx context.Context, counterpartID string) error {
	f.marked.Add(1)
	return errors.New("read receipts unavailable")
}

func (f *fakeSource) Subscribe(ctx context.Context, counterpartID string) (Stream, error) {
	if f.failSub {
		return nil, errors.New("push channel down")
	}
	s := &fakeStream{ch: make(chan models.Message, 8), source: f}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	f.openStreams.Add(1)
	return s, nil
}

// insert stores m server-side without pushing it.
func (f *fakeSource) insert(m models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server = append(f.server, m)
}

func (f *fakeSource) push(m models.Message) {
	f.mu.Lock()
	streams := append([]*fakeStream(nil), f.streams...)
	f.mu.Unlock()
	for _, s := range streams {
		s.ch <- m
	}
}

func waitFor(t *testing.T, v *View, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(v.Messages()) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestOpenLoadsHistoryAndBecomesReady(t *testing.T) {
	src := newFakeSource(msg(2, time.Second), msg(1, 0))
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: time.Hour})
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, StateReady, v.State())
	assert.Equal(t, []int64{1, 2}, ids(v.Messages()))
	require.Eventually(t, func() bool { return src.marked.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOpenFailsWhenHistoryFails(t *testing.T) {
	src := newFakeSource()
	src.histErr = errors.New("boom")

	_, err := Open(context.Background(), src, "t1", Options{})
	require.Error(t, err)
	assert.Zero(t, src.openStreams.Load())
}

func TestPushMergesIdempotently(t *testing.T) {
	src := newFakeSource(msg(1, 0))
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: time.Hour})
	require.NoError(t, err)
	defer v.Close()

	src.push(msg(1, 0))
	src.push(msg(3, 3*time.Second))
	src.push(msg(2, 2*time.Second))
	src.push(msg(3, 3*time.Second))

	waitFor(t, v, 3)
	assert.Equal(t, []int64{1, 2, 3}, ids(v.Messages()))
}

func TestSendThenEchoYieldsOneMessage(t *testing.T) {
	src := newFakeSource()
	src.echoSend = true
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: time.Hour})
	require.NoError(t, err)
	defer v.Close()

	sent, err := v.Send(context.Background(), "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(src.streams[0].ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, v.Refresh(context.Background()))
	messages := v.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)
}

func TestFallbackPollRecoversDroppedPush(t *testing.T) {
	src := newFakeSource(msg(1, 0))
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer v.Close()

	src.insert(msg(2, time.Second))

	waitFor(t, v, 2)
	assert.Equal(t, []int64{1, 2}, ids(v.Messages()))
}

func TestPollingOnlyWhenSubscribeFails(t *testing.T) {
	src := newFakeSource()
	src.failSub = true
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer v.Close()

	src.insert(msg(5, 0))
	waitFor(t, v, 1)
}

func TestUpdatesSignalOnChange(t *testing.T) {
	src := newFakeSource()
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: time.Hour})
	require.NoError(t, err)
	defer v.Close()

	<-v.Updates()
	src.push(msg(1, 0))
	select {
	case <-v.Updates():
	case <-time.After(time.Second):
		t.Fatal("no update signalled")
	}
}

func TestCloseStopsTimerAndSubscription(t *testing.T) {
	src := newFakeSource()
	v, err := Open(context.Background(), src, "t1", Options{FallbackInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	v.Close()
	v.Close()

	select {
	case <-v.Done():
	default:
		t.Fatal("view not torn down")
	}
	assert.Zero(t, src.openStreams.Load())

	polls := src.polls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, src.polls.Load())
}
