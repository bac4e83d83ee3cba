package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
)

// EventIDStore remembers which remote event mirrors a booking.
type EventIDStore interface {
	SetCalendarEventID(ctx context.Context, bookingID int64, eventID string) error
}

// Syncer keeps the calendar in step with booking events.
type Syncer struct {
	client Client
	store  EventIDStore
	logger zerolog.Logger
}

func NewSyncer(client Client, store EventIDStore, logger zerolog.Logger) *Syncer {
	return &Syncer{
		client: client,
		store:  store,
		logger: logger.With().Str("component", "calendar_sync").Logger(),
	}
}

// Register subscribes the syncer to booking events.
func (s *Syncer) Register(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, s.onCreated)
	bus.Subscribe(events.BookingCancelled, s.onCancelled)
	bus.Subscribe(events.BookingRescheduled, s.onRescheduled)
}

func (s *Syncer) onCreated(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	return s.create(ctx, p)
}

func (s *Syncer) create(ctx context.Context, p events.BookingPayload) error {
	id, err := s.client.CreateEvent(ctx, EventFor(p))
	if err != nil {
		metrics.IncCalendarSync("create", "error")
		return fmt.Errorf("calendar create for booking %d: %w", p.BookingID, err)
	}
	metrics.IncCalendarSync("create", "ok")
	if id == "" {
		return nil
	}
	if err := s.store.SetCalendarEventID(ctx, p.BookingID, id); err != nil {
		return fmt.Errorf("store event id for booking %d: %w", p.BookingID, err)
	}
	s.logger.Debug().Int64("booking_id", p.BookingID).Str("event_id", id).Msg("calendar event created")
	return nil
}

func (s *Syncer) onCancelled(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if p.CalendarEventID == "" {
		return nil
	}
	if err := s.client.DeleteEvent(ctx, p.CalendarEventID); err != nil {
		metrics.IncCalendarSync("delete", "error")
		return fmt.Errorf("calendar delete for booking %d: %w", p.BookingID, err)
	}
	metrics.IncCalendarSync("delete", "ok")
	return nil
}

func (s *Syncer) onRescheduled(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if p.CalendarEventID == "" {
		return s.create(ctx, p)
	}
	if err := s.client.UpdateEvent(ctx, p.CalendarEventID, EventFor(p)); err != nil {
		metrics.IncCalendarSync("update", "error")
		return fmt.Errorf("calendar update for booking %d: %w", p.BookingID, err)
	}
	metrics.IncCalendarSync("update", "ok")
	return nil
}

// EventFor builds the calendar entry for a booking.
func EventFor(p events.BookingPayload) Event {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Клиент: %s\nТелефон: %s\nУслуга: %s", p.FullName, p.Phone, p.Service)
	if p.Comment != "" {
		fmt.Fprintf(&desc, "\nКомментарий: %s", p.Comment)
	}
	if p.CreatedByDoctor {
		desc.WriteString("\nСоздано врачом")
	}
	return Event{
		Summary:     p.Service + " - " + p.FullName,
		Description: desc.String(),
		Start:       p.Start,
		End:         p.Start.Add(time.Duration(p.DurationMinutes) * time.Minute),
	}
}
