package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type envelope struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// RedisBroker shares events between API instances over one Redis pub/sub
// channel. Every instance, including the publisher, delivers to its own local
// subscribers when the message comes back from Redis.
type RedisBroker struct {
	*LocalBroker
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroker constructs the broker. Call Run to start receiving.
func NewRedisBroker(client *redis.Client, channel string, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{LocalBroker: NewLocalBroker(), client: client, channel: channel, logger: logger}
}

// Publish sends evt to every instance.
func (b *RedisBroker) Publish(ctx context.Context, topic string, evt Event) error {
	payload, err := json.Marshal(envelope{Topic: topic, Event: evt})
	if err != nil {
		return fmt.Errorf("marshal realtime envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and delivers until ctx is cancelled. ready is
// closed once the subscription is confirmed; it may be nil.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info("realtime broker subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("drop malformed realtime message", zap.Error(err))
				continue
			}
			b.deliver(env.Topic, env.Event)
		}
	}
}
