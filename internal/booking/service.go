// Package booking implements the client-facing booking workflow: drafts,
// validation, dialog state and the service that commits bookings.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

var (
	// ErrNotOwner is returned when a client touches someone else's booking.
	ErrNotOwner = errors.New("booking belongs to another user")
	// ErrNotActive is returned for operations on cancelled or completed bookings.
	ErrNotActive = errors.New("booking is not active")
	// ErrNotFound is returned for unknown bookings.
	ErrNotFound = errors.New("booking not found")
)

// Store is the persistence the booking service needs.
type Store interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status model.BookingStatus) error
	RescheduleBooking(ctx context.Context, id int64, start time.Time) error
	ActiveBookingsByOwner(ctx context.Context, ownerID int64) ([]model.Booking, error)
	UpsertUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, telegramID int64) (*model.User, error)
	CreateOrder(ctx context.Context, o *model.Order) error
}

// Guard validates a booking against the schedule right before commit.
type Guard interface {
	CheckBooking(ctx context.Context, req schedule.BookingRequest) error
	Now() time.Time
}

// Publisher delivers domain events.
type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload any) error
}

// SlotInvalidator drops cached slot lists after occupancy changes.
type SlotInvalidator interface {
	InvalidateDate(ctx context.Context, date time.Time) error
}

// Service commits, cancels and moves bookings.
type Service struct {
	store   Store
	guard   Guard
	bus     Publisher
	cache   SlotInvalidator
	// mu serializes guard checks with commits.
	mu        sync.Mutex
	catalogMu sync.RWMutex
	catalog   model.Catalog
	logger    zerolog.Logger
}

// NewService creates a booking service. bus and cache may be nil.
func NewService(store Store, guard Guard, bus Publisher, cache SlotInvalidator, catalog model.Catalog, logger zerolog.Logger) *Service {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &Service{
		store:   store,
		guard:   guard,
		bus:     bus,
		cache:   cache,
		catalog: catalog,
		logger:  logger.With().Str("component", "booking").Logger(),
	}
}

// Catalog returns the services offered.
func (s *Service) Catalog() model.Catalog {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return s.catalog
}

// SetCatalog replaces the service list after a config reload.
func (s *Service) SetCatalog(c model.Catalog) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	if len(c) > 0 {
		s.catalog = c
	}
}

// Create validates the draft, re-checks the slot and stores the booking.
func (s *Service) Create(ctx context.Context, d Draft) (*model.Booking, error) {
	if d.DurationMinutes <= 0 {
		d.DurationMinutes = s.Catalog().Duration(d.Service)
	}
	if err := d.Validate(); err != nil {
		metrics.IncBookingRejected("validation")
		return nil, err
	}

	b := d.Booking()
	if err := s.commit(ctx, b); err != nil {
		return nil, err
	}

	source := "client"
	if b.CreatedByDoctor {
		source = "doctor"
	}
	metrics.IncBookingCreated(source)

	if b.HasOwner() {
		if err := s.store.UpsertUser(ctx, &model.User{TelegramID: *b.OwnerID, FullName: b.FullName, Phone: b.Phone}); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", *b.OwnerID).Msg("failed to remember client")
		}
	}

	s.invalidate(ctx, b.Start)
	s.publish(ctx, events.BookingCreated, payloadOf(b))

	zerolog.Ctx(ctx).Info().
		Int64("booking_id", b.ID).
		Str("service", b.Service).
		Time("start", b.Start).
		Bool("by_doctor", b.CreatedByDoctor).
		Msg("booking created")
	return b, nil
}

func (s *Service) commit(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.guard.CheckBooking(ctx, schedule.BookingRequest{
		OwnerID:         b.OwnerID,
		Start:           b.Start,
		DurationMinutes: b.DurationMinutes,
		CreatedByDoctor: b.CreatedByDoctor,
	})
	if err != nil {
		metrics.IncBookingRejected(rejectReason(err))
		return err
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingRejected("slot_taken")
			return fmt.Errorf("%w: %v", schedule.ErrSlotUnavailable, err)
		}
		return fmt.Errorf("store booking: %w", err)
	}
	return nil
}

// Cancel cancels an active booking. When byOwner is set the booking must
// belong to that user.
func (s *Service) Cancel(ctx context.Context, id int64, reason string, byOwner *int64) (*model.Booking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if byOwner != nil && (b.OwnerID == nil || *b.OwnerID != *byOwner) {
		return nil, ErrNotOwner
	}
	if err := s.setStatus(ctx, b, model.BookingCancelled); err != nil {
		return nil, err
	}

	p := payloadOf(b)
	p.Reason = reason
	p.ByClient = byOwner != nil
	s.publish(ctx, events.BookingCancelled, p)

	zerolog.Ctx(ctx).Info().Int64("booking_id", id).Str("reason", reason).Msg("booking cancelled")
	return b, nil
}

// CancelMany cancels bookings with a shared reason and returns how many
// were cancelled. Bookings that are no longer active are skipped.
func (s *Service) CancelMany(ctx context.Context, bookings []model.Booking, reason string) int {
	n := 0
	for _, b := range bookings {
		if _, err := s.Cancel(ctx, b.ID, reason, nil); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("bulk cancel skipped booking")
			continue
		}
		n++
	}
	return n
}

// Complete marks an active booking as done.
func (s *Service) Complete(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, b, model.BookingCompleted); err != nil {
		return nil, err
	}
	s.publish(ctx, events.BookingCompleted, payloadOf(b))
	return b, nil
}

func (s *Service) setStatus(ctx context.Context, b *model.Booking, status model.BookingStatus) error {
	if !b.IsActive() {
		return ErrNotActive
	}
	if err := s.store.UpdateBookingStatus(ctx, b.ID, status); err != nil {
		if errors.Is(err, database.ErrAlreadyFinal) {
			return ErrNotActive
		}
		if errors.Is(err, database.ErrBookingNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	b.Status = status
	metrics.IncBookingStatus(string(status))
	s.invalidate(ctx, b.Start)
	return nil
}

// Reschedule moves an active booking to start. The booking's own time is
// ignored by the overlap check and its owner's capacity is not re-checked.
func (s *Service) Reschedule(ctx context.Context, id int64, start time.Time) (*model.Booking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive() {
		return nil, ErrNotActive
	}
	previous := b.Start

	if err := s.move(ctx, b, start); err != nil {
		return nil, err
	}
	b.Start = start

	s.invalidate(ctx, previous)
	s.invalidate(ctx, start)

	p := payloadOf(b)
	p.PreviousStart = &previous
	s.publish(ctx, events.BookingRescheduled, p)

	zerolog.Ctx(ctx).Info().
		Int64("booking_id", id).
		Time("from", previous).
		Time("to", start).
		Msg("booking rescheduled")
	return b, nil
}

func (s *Service) move(ctx context.Context, b *model.Booking, start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.guard.CheckBooking(ctx, schedule.BookingRequest{
		OwnerID:         b.OwnerID,
		Start:           start,
		DurationMinutes: b.DurationMinutes,
		CreatedByDoctor: b.CreatedByDoctor,
		RescheduleOf:    b.ID,
	})
	if err != nil {
		metrics.IncBookingRejected(rejectReason(err))
		return err
	}

	if err := s.store.RescheduleBooking(ctx, b.ID, start); err != nil {
		switch {
		case errors.Is(err, database.ErrSlotTaken):
			return fmt.Errorf("%w: %v", schedule.ErrSlotUnavailable, err)
		case errors.Is(err, database.ErrAlreadyFinal):
			return ErrNotActive
		}
		return fmt.Errorf("move booking %d: %w", b.ID, err)
	}
	return nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id int64) (*model.Booking, error) {
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// MyBookings returns the owner's active bookings that have not started yet.
func (s *Service) MyBookings(ctx context.Context, ownerID int64) ([]model.Booking, error) {
	all, err := s.store.ActiveBookingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of %d: %w", ownerID, err)
	}
	now := s.guard.Now()
	out := make([]model.Booking, 0, len(all))
	for _, b := range all {
		if !b.Start.Before(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

// KnownUser returns saved contact details of a returning client, or nil.
func (s *Service) KnownUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.store.GetUser(ctx, telegramID)
}

// CreateOrder validates and stores a supplement order.
func (s *Service) CreateOrder(ctx context.Context, d OrderDraft) (*model.Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	o := d.Order()
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}
	metrics.IncOrderCreated()

	s.publish(ctx, events.OrderCreated, events.OrderPayload{
		OrderID:  o.ID,
		OwnerID:  o.OwnerID,
		FullName: o.FullName,
		Phone:    o.Phone,
		Products: o.Products,
		Comment:  o.Comment,
	})
	return o, nil
}

func (s *Service) invalidate(ctx context.Context, date time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDate(ctx, date); err != nil {
		s.logger.Warn().Err(err).Time("date", date).Msg("slot cache invalidation failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func payloadOf(b *model.Booking) events.BookingPayload {
	return events.BookingPayload{
		BookingID:       b.ID,
		OwnerID:         b.OwnerID,
		FullName:        b.FullName,
		Phone:           b.Phone,
		Service:         b.Service,
		Comment:         b.Comment,
		Start:           b.Start,
		DurationMinutes: b.DurationMinutes,
		CalendarEventID: b.CalendarEventID,
		CreatedByDoctor: b.CreatedByDoctor,
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, schedule.ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, schedule.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, schedule.ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}

// UserMessage turns a service error into a reply for the client.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, schedule.ErrCapacityExceeded):
		return "❌ У вас уже есть активная запись. Отмените её в разделе «Мои записи», чтобы записаться снова."
	case errors.Is(err, schedule.ErrSlotUnavailable):
		return "❌ К сожалению, это время уже занято. Пожалуйста, выберите другое."
	case errors.Is(err, schedule.ErrInvalidInput):
		return "❌ Некорректные дата или время записи."
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotFound):
		return "❌ Запись не найдена."
	case errors.Is(err, ErrNotActive):
		return "ℹ️ Запись уже отменена или завершена."
	}
	return "❌ Произошла ошибка. Попробуйте позже."
}
