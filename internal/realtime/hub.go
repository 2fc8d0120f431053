package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/models"
)

const defaultBuffer = 32

// Observer receives subscription and drop events for instrumentation.
type Observer interface {
	StreamOpened()
	StreamClosed()
	PushDropped()
}

// Relay forwards locally published messages to other instances.
type Relay interface {
	Publish(ctx context.Context, msg models.Message) error
}

type noopObserver struct{}

func (noopObserver) StreamOpened() {}
func (noopObserver) StreamClosed() {}
func (noopObserver) PushDropped()  {}

// Hub fans stored messages out to the subscribers of their conversation.
// Delivery never blocks: a subscriber whose buffer is full misses the event
// and catches up through its fallback poll.
type Hub struct {
	mu       sync.RWMutex
	subs     map[models.ConversationKey]map[*Subscription]struct{}
	buffer   int
	observer Observer
	relay    Relay
	logger   *zap.Logger
}

// NewHub builds a hub. observer may be nil.
func NewHub(buffer int, observer Observer, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:     make(map[models.ConversationKey]map[*Subscription]struct{}),
		buffer:   buffer,
		observer: observer,
		logger:   logger,
	}
}

// SetRelay attaches the cross-instance relay.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Subscribe registers interest in one conversation.
func (h *Hub) Subscribe(key models.ConversationKey) *Subscription {
	sub := &Subscription{key: key, ch: make(chan models.Message, h.buffer), hub: h}
	h.mu.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[key] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	h.observer.StreamOpened()
	return sub
}

// Publish delivers msg locally and hands it to the relay.
func (h *Hub) Publish(ctx context.Context, msg models.Message) {
	h.Deliver(msg)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, msg); err != nil {
		h.logger.Warn("relay publish failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
}

// Deliver pushes msg to local subscribers only.
func (h *Hub) Deliver(msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[msg.Key()] {
		select {
		case sub.ch <- msg:
		default:
			h.observer.PushDropped()
			h.logger.Debug("push dropped", zap.String("conversation", msg.Key().String()), zap.Int64("message_id", msg.ID))
		}
	}
}

// Active returns the number of open subscriptions.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.key]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.key)
	}
	close(sub.ch)
	h.observer.StreamClosed()
}

// Subscription is one listener on a conversation.
type Subscription struct {
	key  models.ConversationKey
	ch   chan models.Message
	hub  *Hub
	once sync.Once
}

// C yields pushed messages until Close.
func (s *Subscription) C() <-chan models.Message { return s.ch }

// Key is the conversation this subscription listens to.
func (s *Subscription) Key() models.ConversationKey { return s.key }

// Close unregisters the subscription and closes C. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}
