package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/models"
)

type envelope struct {
	Origin  string         `json:"origin"`
	Message models.Message `json:"message"`
}

// RedisBridge relays messages between API instances over a Redis channel so a
// subscriber connected to one instance sees inserts made through another.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	origin  string
	logger  *zap.Logger
}

// NewRedisBridge wires a bridge to hub and registers it as the hub relay.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		origin:  uuid.NewString(),
		logger:  logger.With(zap.String("channel", channel)),
	}
	hub.SetRelay(b)
	return b
}

// Publish implements Relay.
func (b *RedisBridge) Publish(ctx context.Context, msg models.Message) error {
	payload, err := json.Marshal(envelope{Origin: b.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime bridge subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(m.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("invalid bridge payload", zap.Error(err))
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.hub.Deliver(env.Message)
}
