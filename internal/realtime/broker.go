// File: internal/realtime/broker.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans change events out through Redis pub/sub so every server
// instance delivers them to its own Hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBroker returns nil when no Redis client is configured.
func NewRedisBroker(client *redis.Client, hub *Hub, prefix string, logger *zap.Logger) *RedisBroker {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "waste"
	}
	return &RedisBroker{
		client: client,
		hub:    hub,
		prefix: prefix,
		logger: logger.Named("RedisBroker"),
	}
}

func (b *RedisBroker) channel(table string) string {
	return fmt.Sprintf("%s:changes:%s", b.prefix, table)
}

// Publish sends the event to Redis; the subscription loop hands it to the Hub.
func (b *RedisBroker) Publish(ctx context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.Table), data).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Start subscribes to every change channel and relays messages into the Hub.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.PSubscribe(ctx, b.channel("*"))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to change channels: %w", err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go b.relay(pubsub.Channel(), b.done)
	b.logger.Info("Relaying change events from Redis", zap.String("pattern", b.channel("*")))
	return nil
}

func (b *RedisBroker) relay(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var event ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn("Discarding malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if event.Table == "" {
			event.Table = strings.TrimPrefix(msg.Channel, b.prefix+":changes:")
		}
		b.hub.Broadcast(event)
	}
}

// Stop closes the subscription and waits for the relay loop to exit.
func (b *RedisBroker) Stop() {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return
	}
	if err := pubsub.Close(); err != nil {
		b.logger.Warn("Error closing Redis subscription", zap.Error(err))
	}
	<-done
}

// NewPublisher picks Redis when available, otherwise the in-process Hub.
func NewPublisher(hub *Hub, broker *RedisBroker) Publisher {
	if broker != nil {
		return broker
	}
	return hub
}
