package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/hqtrung/foodapp-odoo-bridge/metrics"
)

// RedisBroker implements MessageBroker over Redis pub/sub. It can share the
// client used by the cache store.
type RedisBroker struct {
	client *redis.Client

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	closed  bool
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, event ReloadEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	b.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reload event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish reload event: %w", err)
	}
	metrics.BrokerEventsPublished.WithLabelValues("redis").Inc()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan ReloadEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("broker is closed")
	}
	pubsub := b.client.Subscribe(ctx, channel)
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	// Confirm the subscription before handing the channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	events := make(chan ReloadEvent, 16)
	go func() {
		defer close(events)
		for {
			select {
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event ReloadEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("Reload event decode error: %v", err)
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, pubsub := range b.pubsubs {
		pubsub.Close()
	}
	// The redis client is shared with the cache store; its owner closes it.
	return nil
}
