// File: internal/realtime/event.go
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType mirrors the row operations of the change feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Topics, one per table plus the session channel.
const (
	TableReports       = "reports"
	TableSchedules     = "pickup_schedules"
	TableNotifications = "notifications"
	TableSession       = "session"
)

// ChangeEvent announces that a row changed. Consumers re-query instead of trusting a payload.
type ChangeEvent struct {
	Table  string     `json:"table"`
	Type   EventType  `json:"type"`
	ID     uuid.UUID  `json:"id"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
	ForAll bool       `json:"for_all,omitempty"`
	Action string     `json:"action,omitempty"`
	At     time.Time  `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(table string, typ EventType, id uuid.UUID, userID *uuid.UUID) ChangeEvent {
	return ChangeEvent{Table: table, Type: typ, ID: id, UserID: userID, At: time.Now().UTC()}
}

// Publisher emits change events to every interested subscriber.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// NopPublisher discards events. Useful in tests and one-off commands.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }
