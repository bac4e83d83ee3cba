// Package schedule decides which appointment slots are bookable.
//
// The Engine layers the weekly template, dated overrides, holidays and
// absences to resolve a day's window, builds an occupancy index from active
// bookings and guards commits against double booking.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"

	"github.com/rs/zerolog"
)

// QuantumMinutes is the atomic unit of overlap bookkeeping.
const QuantumMinutes = 30

// Store is the read side of persistence the engine needs.
type Store interface {
	// ActiveBookingsBetween returns active bookings with start in [from, to].
	ActiveBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	// ActiveBookingsSince returns active bookings with start >= from.
	ActiveBookingsSince(ctx context.Context, from time.Time) ([]model.Booking, error)
	CountActiveBookingsByOwner(ctx context.Context, ownerID int64) (int, error)
	OverridesForWeekday(ctx context.Context, weekday time.Weekday) ([]model.ScheduleOverride, error)
	IsBlockedDate(ctx context.Context, date time.Time) (bool, error)
	AbsencesOverlapping(ctx context.Context, from, to time.Time) ([]model.AbsencePeriod, error)
}

// SlotKey identifies a cached slot list.
type SlotKey struct {
	Date            time.Time
	DurationMinutes int
	Restricted      bool
}

// SlotCache stores computed slot lists. It is never consulted by the race-check.
type SlotCache interface {
	Get(ctx context.Context, key SlotKey) ([]time.Time, bool)
	Set(ctx context.Context, key SlotKey, slots []time.Time)
}

// Config holds the standing schedule.
type Config struct {
	Template   model.WeeklyTemplate
	Restricted model.RestrictedMode
	Location   *time.Location
}

// Engine is the scheduling core.
type Engine struct {
	store  Store
	mu     sync.RWMutex
	cfg    Config
	cache  SlotCache
	now    func() time.Time
	logger zerolog.Logger
}

// NewEngine creates an engine. Zero-valued config fields fall back to the clinic defaults.
func NewEngine(store Store, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Template == nil {
		cfg.Template = model.DefaultWeeklyTemplate()
	}
	if len(cfg.Restricted.Starts) == 0 {
		cfg.Restricted = model.DefaultRestrictedMode()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

// UseCache enables slot list caching.
func (e *Engine) UseCache(c SlotCache) {
	e.cache = c
}

// Reload swaps the standing template and restricted mode. Zero values are ignored.
func (e *Engine) Reload(template model.WeeklyTemplate, restricted model.RestrictedMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if template != nil {
		e.cfg.Template = template
	}
	if len(restricted.Starts) > 0 {
		e.cfg.Restricted = restricted
	}
	e.logger.Info().Int("weekdays", len(e.cfg.Template)).Msg("schedule reloaded")
}

// Template returns the standing weekly template.
func (e *Engine) Template() model.WeeklyTemplate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Template
}

// RestrictedMode returns the fixed-day schedule.
func (e *Engine) RestrictedMode() model.RestrictedMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Restricted
}

// Location returns the clinic's time zone.
func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

// Now returns the current time in the clinic's zone.
func (e *Engine) Now() time.Time {
	return e.now().In(e.cfg.Location)
}

// Day returns midnight of date's calendar day in the clinic's zone.
func (e *Engine) Day(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.cfg.Location)
}
