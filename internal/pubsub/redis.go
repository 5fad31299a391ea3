package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker is a Broker backed by Redis pub/sub, for deployments where
// subscribers live in other processes. Payloads travel as JSON.
type RedisBroker struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisBroker wraps an already-configured Redis client.
func NewRedisBroker(client *redis.Client, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		logger: logger.With().Str("component", "pubsub-redis").Logger(),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan interface{}, func(), error) {
	sub := b.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan interface{}, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var payload interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				b.logger.Warn().Err(err).Str("topic", topic).Msg("discarding undecodable event")
				continue
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
