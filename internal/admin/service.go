// Package admin implements the doctor's schedule and appointment management.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/export"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

// ScheduleChangeReason is sent to clients whose bookings fall outside new hours.
const ScheduleChangeReason = "Изменение расписания работы"

// Store is the persistence admin operations need.
type Store interface {
	ActiveBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	CreateOverride(ctx context.Context, o *model.ScheduleOverride) error
	CreateAbsence(ctx context.Context, a *model.AbsencePeriod) error
	UpcomingAbsences(ctx context.Context, since time.Time) ([]model.AbsencePeriod, error)
	BlockDate(ctx context.Context, date time.Time, description string) error
	UnblockDate(ctx context.Context, date time.Time) error
	BlockedDatesFrom(ctx context.Context, from time.Time) ([]model.BlockedDate, error)
	PendingOrders(ctx context.Context) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	MarkOrderProcessed(ctx context.Context, id int64) error
}

// Scheduler is the read side of the scheduling engine.
type Scheduler interface {
	FindScheduleChangeConflicts(ctx context.Context, weekday time.Weekday, w model.Window) ([]model.Booking, error)
	FindAbsenceConflicts(ctx context.Context, start, end time.Time) ([]model.Booking, error)
	ResolveSchedule(ctx context.Context, date time.Time) (model.Window, bool, error)
	Template() model.WeeklyTemplate
	RestrictedMode() model.RestrictedMode
	Now() time.Time
	Day(date time.Time) time.Time
}

// Canceller cancels bookings with a reason and notifies their owners.
type Canceller interface {
	CancelMany(ctx context.Context, bookings []model.Booking, reason string) int
}

// Publisher delivers domain events.
type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload any) error
}

// CacheInvalidator drops every cached slot list.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Result reports the outcome of a schedule-affecting change.
type Result struct {
	Summary   string
	Cancelled int
}

// Service implements admin operations.
type Service struct {
	store    Store
	schedule Scheduler
	bookings Canceller
	bus      Publisher
	cache    CacheInvalidator
	logger   zerolog.Logger
}

// NewService creates an admin service. bus and cache may be nil.
func NewService(store Store, schedule Scheduler, bookings Canceller, bus Publisher, cache CacheInvalidator, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		schedule: schedule,
		bookings: bookings,
		bus:      bus,
		cache:    cache,
		logger:   logger.With().Str("component", "admin").Logger(),
	}
}

// Appointments returns the active bookings of date's calendar day.
func (s *Service) Appointments(ctx context.Context, date time.Time) ([]model.Booking, error) {
	day := s.schedule.Day(date)
	bookings, err := s.store.ActiveBookingsBetween(ctx, day, model.EndOfDay(day))
	if err != nil {
		return nil, fmt.Errorf("appointments for %s: %w", day.Format("2006-01-02"), err)
	}
	return bookings, nil
}

// WorkingHours describes the hours in effect for the week starting today.
type WorkingHours struct {
	Template   model.WeeklyTemplate
	Restricted model.RestrictedMode
	// Effective holds the resolved window per weekday for the coming week.
	Effective map[time.Weekday]model.Window
}

// CurrentSchedule resolves the coming seven days.
func (s *Service) CurrentSchedule(ctx context.Context) (WorkingHours, error) {
	out := WorkingHours{
		Template:   s.schedule.Template(),
		Restricted: s.schedule.RestrictedMode(),
		Effective:  make(map[time.Weekday]model.Window),
	}
	today := s.schedule.Day(s.schedule.Now())
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i)
		w, ok, err := s.schedule.ResolveSchedule(ctx, day)
		if err != nil {
			return WorkingHours{}, err
		}
		if ok {
			out.Effective[day.Weekday()] = w
		}
	}
	return out, nil
}

// PreviewScheduleChange lists bookings that new hours would cancel.
func (s *Service) PreviewScheduleChange(ctx context.Context, weekday time.Weekday, w model.Window) ([]model.Booking, error) {
	return s.schedule.FindScheduleChangeConflicts(ctx, weekday, w)
}

// ApplyScheduleChange sets new hours for weekday from today on and cancels
// the bookings that no longer fit. Conflicts are collected after the new
// hours are stored, so bookings made since the preview are included.
func (s *Service) ApplyScheduleChange(ctx context.Context, weekday time.Weekday, w model.Window) (Result, error) {
	if !w.Valid() || !w.Aligned(schedule.QuantumMinutes) {
		return Result{}, fmt.Errorf("%w: window %s", schedule.ErrInvalidInput, w)
	}

	o := &model.ScheduleOverride{
		Weekday:       weekday,
		Window:        w,
		EffectiveFrom: s.schedule.Day(s.schedule.Now()),
	}
	if err := s.store.CreateOverride(ctx, o); err != nil {
		return Result{}, fmt.Errorf("save new hours: %w", err)
	}

	conflicts, err := s.schedule.FindScheduleChangeConflicts(ctx, weekday, w)
	if err != nil {
		return Result{}, fmt.Errorf("collect conflicts: %w", err)
	}

	res := Result{
		Summary:   fmt.Sprintf("Часы работы (%s) изменены на %s", strings.ToLower(notify.WeekdayName(weekday)), w),
		Cancelled: s.bookings.CancelMany(ctx, conflicts, ScheduleChangeReason),
	}
	s.afterChange(ctx, "hours", res)

	s.logger.Info().
		Int64("override_id", o.ID).
		Str("weekday", weekday.String()).
		Str("window", w.String()).
		Int("cancelled", res.Cancelled).
		Msg("schedule changed")
	return res, nil
}

func (s *Service) absenceBounds(start, end time.Time) (time.Time, time.Time) {
	return s.schedule.Day(start), model.EndOfDay(s.schedule.Day(end))
}

// PreviewAbsence lists bookings inside the absence days.
func (s *Service) PreviewAbsence(ctx context.Context, start, end time.Time) ([]model.Booking, error) {
	from, to := s.absenceBounds(start, end)
	return s.schedule.FindAbsenceConflicts(ctx, from, to)
}

// ApplyAbsence records a vacation or sick leave over whole days and cancels
// the bookings inside it.
func (s *Service) ApplyAbsence(ctx context.Context, kind model.AbsenceKind, start, end time.Time) (Result, error) {
	from, to := s.absenceBounds(start, end)
	if to.Before(from) {
		return Result{}, fmt.Errorf("%w: absence ends before it starts", schedule.ErrInvalidInput)
	}

	a := &model.AbsencePeriod{Kind: kind, Start: from, End: to}
	if err := s.store.CreateAbsence(ctx, a); err != nil {
		return Result{}, fmt.Errorf("save absence: %w", err)
	}

	conflicts, err := s.schedule.FindAbsenceConflicts(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("collect conflicts: %w", err)
	}

	res := Result{
		Summary:   fmt.Sprintf("%s: %s – %s", kind.Title(), from.Format("02.01.2006"), to.Format("02.01.2006")),
		Cancelled: s.bookings.CancelMany(ctx, conflicts, kind.CancelReason()),
	}
	s.afterChange(ctx, "absence", res)

	s.logger.Info().
		Int64("absence_id", a.ID).
		Str("kind", string(kind)).
		Time("from", from).
		Time("to", to).
		Int("cancelled", res.Cancelled).
		Msg("absence added")
	return res, nil
}

// Absences lists absences that have not ended yet.
func (s *Service) Absences(ctx context.Context) ([]model.AbsencePeriod, error) {
	return s.store.UpcomingAbsences(ctx, s.schedule.Day(s.schedule.Now()))
}

// AddHoliday closes a day. Existing bookings on it are returned, not cancelled.
func (s *Service) AddHoliday(ctx context.Context, date time.Time, description string) ([]model.Booking, error) {
	day := s.schedule.Day(date)
	if err := s.store.BlockDate(ctx, day, description); err != nil {
		return nil, err
	}
	s.afterChange(ctx, "holiday", Result{Summary: "Добавлен выходной день " + day.Format("02.01.2006")})
	return s.Appointments(ctx, day)
}

// RemoveHoliday reopens a day.
func (s *Service) RemoveHoliday(ctx context.Context, date time.Time) error {
	day := s.schedule.Day(date)
	if err := s.store.UnblockDate(ctx, day); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Holidays lists upcoming holidays.
func (s *Service) Holidays(ctx context.Context) ([]model.BlockedDate, error) {
	return s.store.BlockedDatesFrom(ctx, s.schedule.Day(s.schedule.Now()))
}

// PendingOrders lists supplement orders awaiting processing.
func (s *Service) PendingOrders(ctx context.Context) ([]model.Order, error) {
	return s.store.PendingOrders(ctx)
}

// ProcessOrder marks an order as handled.
func (s *Service) ProcessOrder(ctx context.Context, id int64) error {
	return s.store.MarkOrderProcessed(ctx, id)
}

// Export renders bookings and orders created in [from, to] as a workbook.
func (s *Service) Export(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	from, to = s.schedule.Day(from), model.EndOfDay(s.schedule.Day(to))

	bookings, err := s.store.BookingsBetween(ctx, from, to)
	if err != nil {
		return nil, "", fmt.Errorf("load bookings: %w", err)
	}
	all, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load orders: %w", err)
	}
	var orders []model.Order
	for _, o := range all {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			orders = append(orders, o)
		}
	}

	data, err := export.Workbook(bookings, orders)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(from, to), nil
}

func (s *Service) afterChange(ctx context.Context, kind string, res Result) {
	s.invalidate(ctx)
	if s.bus == nil {
		return
	}
	err := s.bus.PublishJSON(ctx, events.ScheduleChanged, events.ScheduleChangedPayload{
		Kind:      kind,
		Summary:   res.Summary,
		Cancelled: res.Cancelled,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to publish schedule change")
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("slot cache invalidation failed")
	}
}
