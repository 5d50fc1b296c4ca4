// File: internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 32

// Filter decides whether a subscriber wants an event.
type Filter func(ChangeEvent) bool

// Subscription is one observer registered with the Hub.
type Subscription struct {
	id     uint64
	ch     chan ChangeEvent
	filter Filter
}

// Events yields the subscriber's events until Unsubscribe closes it.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

// Hub is the application-scoped observer registry for change events.
// Sends never block: a subscriber whose buffer is full misses the event and re-queries on the next one.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultSubscriberBuffer,
		logger: logger.Named("RealtimeHub"),
	}
}

// Subscribe registers an observer. A nil filter receives everything.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		ch:     make(chan ChangeEvent, h.buffer),
		filter: filter,
	}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Broadcast delivers the event to every matching subscriber in this process.
func (h *Hub) Broadcast(event ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.logger.Debug("Dropping event for slow subscriber",
				zap.Uint64("subscriber", sub.id),
				zap.String("table", event.Table),
			)
		}
	}
}

// Publish makes the hub usable as a single-instance Publisher.
func (h *Hub) Publish(_ context.Context, event ChangeEvent) error {
	h.Broadcast(event)
	return nil
}

// SubscriberCount reports the number of live observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
