// Package events is an in-process pub/sub bus for domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	BookingCreated     = "booking.created"
	BookingCancelled   = "booking.cancelled"
	BookingCompleted   = "booking.completed"
	BookingRescheduled = "booking.rescheduled"
	ScheduleChanged    = "schedule.changed"
	OrderCreated       = "order.created"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the number of
// handlers that failed. Failures are logged and never stop delivery.
func (b *EventBus) Publish(ctx context.Context, event Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(ctx, event); err != nil {
			failed++
			b.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Msg("event handler failed")
		}
	}
	return failed
}

// PublishJSON encodes payload and publishes it under eventType.
func (b *EventBus) PublishJSON(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	b.Publish(ctx, Event{Type: eventType, Payload: data})
	return nil
}
