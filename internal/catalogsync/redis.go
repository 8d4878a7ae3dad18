package catalogsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured.
const DefaultChannel = "catalog:changes"

// RedisBroker shares signals between catalogd instances over Redis pub/sub.
// Local subscribers are served by an embedded MemoryBroker: a Publish reaches
// them immediately, and signals from other instances reach them once Start
// has relayed them. Echoes of this instance's own signals are dropped.
type RedisBroker struct {
	client  *redis.Client
	channel string
	origin  string
	local   *MemoryBroker
}

// NewRedisBroker creates a RedisBroker publishing on channel.
func NewRedisBroker(client *redis.Client, channel, origin string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	if origin == "" {
		origin = NewOrigin()
	}
	return &RedisBroker{
		client:  client,
		channel: channel,
		origin:  origin,
		local:   NewMemoryBroker(DefaultBuffer),
	}
}

// Origin returns the identifier stamped on signals from this instance.
func (b *RedisBroker) Origin() string { return b.origin }

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, s Signal) error {
	if s.Origin == "" {
		s.Origin = b.origin
	}
	b.local.Publish(ctx, s)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe implements Broker.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Signal, func()) {
	return b.local.Subscribe(ctx)
}

// Start relays signals published by other instances to local subscribers
// until ctx ends.
func (b *RedisBroker) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	zap.L().Info("catalog broker subscribed", zap.String("channel", b.channel), zap.String("origin", b.origin))

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var s Signal
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				zap.L().Warn("dropping malformed catalog signal", zap.Error(err))
				continue
			}
			if s.Origin == b.origin {
				continue
			}
			b.local.Publish(ctx, s)
		}
	}
}
