package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/models"
)

// DefaultFallbackInterval bounds how long a view trusts a silent push channel.
const DefaultFallbackInterval = 7 * time.Second

// State is the lifecycle stage of a view.
type State int

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Options tune views opened by a Manager.
type Options struct {
	FallbackInterval time.Duration
	Logger           *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.FallbackInterval <= 0 {
		o.FallbackInterval = DefaultFallbackInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// View is the live, ordered message list of one conversation.
type View struct {
	counterpartID string
	source        Source
	fallback      time.Duration
	logger        *zap.Logger

	mu       sync.RWMutex
	state    State
	messages []models.Message

	updates   chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
	onClose   func(*View)
}

// Open subscribes to the conversation, loads its history and starts the
// fallback timer. The subscription is taken before the history fetch so no
// insert falls between the two. A failed subscription leaves the view on
// polling alone.
func Open(ctx context.Context, source Source, counterpartID string, opts Options) (*View, error) {
	opts = opts.withDefaults()
	v := &View{
		counterpartID: counterpartID,
		source:        source,
		fallback:      opts.FallbackInterval,
		logger:        opts.Logger.With(zap.String("counterpart_id", counterpartID)),
		state:         StateLoading,
		updates:       make(chan struct{}, 1),
		closed:        make(chan struct{}),
	}

	stream, err := source.Subscribe(ctx, counterpartID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		v.logger.Warn("conversation subscribe failed, polling only", zap.Error(err))
		stream = nil
	}

	history, err := source.History(ctx, counterpartID)
	if err != nil {
		if stream != nil {
			_ = stream.Close()
		}
		return nil, err
	}
	v.apply(history)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v.cancel = cancel
	v.wg.Add(2)
	go v.markRead(loopCtx)
	go v.run(loopCtx, stream)
	return v, nil
}

// CounterpartID returns the other participant.
func (v *View) CounterpartID() string { return v.counterpartID }

// State reports the lifecycle stage.
func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Messages returns a copy of the current ordered list.
func (v *View) Messages() []models.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Updates signals after every change of the list. Signals coalesce.
func (v *View) Updates() <-chan struct{} { return v.updates }

// Done is closed once the view has been torn down.
func (v *View) Done() <-chan struct{} { return v.closed }

// Send posts content and merges the stored row right away. A later push echo
// of the same row is absorbed by Merge.
func (v *View) Send(ctx context.Context, content string) (*models.Message, error) {
	msg, err := v.source.Send(ctx, v.counterpartID, content)
	if err != nil {
		return nil, err
	}
	v.apply([]models.Message{*msg})
	return msg, nil
}

// Refresh re-fetches the full history and merges it.
func (v *View) Refresh(ctx context.Context) error {
	history, err := v.source.History(ctx, v.counterpartID)
	if err != nil {
		return err
	}
	v.apply(history)
	return nil
}

// Close stops the subscription and the fallback timer and waits for both.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		v.wg.Wait()
		close(v.closed)
		if v.onClose != nil {
			v.onClose(v)
		}
	})
}

func (v *View) apply(incoming []models.Message) {
	v.mu.Lock()
	v.messages = Merge(v.messages, incoming)
	v.state = StateReady
	v.mu.Unlock()

	select {
	case v.updates <- struct{}{}:
	default:
	}
}

func (v *View) run(ctx context.Context, stream Stream) {
	defer v.wg.Done()

	var events <-chan models.Message
	if stream != nil {
		events = stream.Messages()
		defer func() {
			if err := stream.Close(); err != nil {
				v.logger.Debug("conversation stream close", zap.Error(err))
			}
		}()
	}

	timer := time.NewTimer(v.fallback)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				v.logger.Warn("conversation stream ended, polling only")
				events = nil
				continue
			}
			v.apply([]models.Message{msg})
			resetTimer(timer, v.fallback)
		case <-timer.C:
			if err := v.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				v.logger.Warn("conversation fallback poll failed", zap.Error(err))
			}
			timer.Reset(v.fallback)
		}
	}
}

func (v *View) markRead(ctx context.Context) {
	defer v.wg.Done()
	if err := v.source.MarkRead(ctx, v.counterpartID); err != nil && !errors.Is(err, context.Canceled) {
		v.logger.Warn("mark read failed", zap.Error(err))
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
