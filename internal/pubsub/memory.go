package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 16

// MemoryBroker is an in-process Broker backed by per-topic channel fanout.
type MemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]chan interface{}
	nextID      int
	logger      zerolog.Logger
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker(logger zerolog.Logger) *MemoryBroker {
	return &MemoryBroker{
		subscribers: make(map[string]map[int]chan interface{}),
		logger:      logger.With().Str("component", "pubsub-memory").Logger(),
	}
}

// Publish delivers payload to every subscriber of topic. Slow subscribers
// with a full buffer are skipped rather than blocking the publisher.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- payload:
		default:
			b.logger.Warn().Str("topic", topic).Msg("dropping event for slow subscriber")
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel for topic.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan interface{}, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[int]chan interface{})
	}

	id := b.nextID
	b.nextID++
	ch := make(chan interface{}, subscriberBuffer)
	b.subscribers[topic][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[topic]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
		}
	}

	return ch, cancel, nil
}
