// Package reminders sends day-before appointment reminders.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// Store provides bookings and reminder dedup records.
type Store interface {
	ActiveBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	IsReminderSent(ctx context.Context, bookingID int64) (bool, error)
	MarkReminderSent(ctx context.Context, bookingID int64) error
	CleanupReminders(ctx context.Context, before time.Time) (int64, error)
}

// Sender delivers a reminder to the booking owner.
type Sender interface {
	SendReminder(ctx context.Context, b model.Booking) error
}

// Config holds configuration for the reminder service.
type Config struct {
	// Spec is the cron schedule of the sweep. Default: @hourly.
	Spec string

	// MaxConcurrentNotifications limits parallel sends. Default: 5.
	MaxConcurrentNotifications int

	// RetentionDays is how long dedup rows are kept. Default: 7.
	RetentionDays int

	Location *time.Location
}

// Stats summarizes one sweep.
type Stats struct {
	Checked int
	Sent    int
	Skipped int
	Failed  int
}

// Service runs the reminder sweep on a cron schedule.
type Service struct {
	config  Config
	store   Store
	sender  Sender
	metrics *Metrics
	cron    *cron.Cron
	now     func() time.Time
	logger  zerolog.Logger
	mu      sync.Mutex
}

func NewService(cfg Config, store Store, sender Sender, metrics *Metrics, logger zerolog.Logger) *Service {
	if cfg.Spec == "" {
		cfg.Spec = "@hourly"
	}
	if cfg.MaxConcurrentNotifications <= 0 {
		cfg.MaxConcurrentNotifications = 5
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if metrics == nil {
		metrics = NewMetrics("dental_bot", nil)
	}
	return &Service{
		config:  cfg,
		store:   store,
		sender:  sender,
		metrics: metrics,
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		now:     time.Now,
		logger:  logger.With().Str("component", "reminders").Logger(),
	}
}

// Start schedules the sweep and stops it when ctx is done.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.config.Spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reminder sweep failed")
		}
		s.Cleanup(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.config.Spec, err)
	}

	s.cron.Start()
	s.logger.Info().Str("spec", s.config.Spec).Msg("reminder service started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info().Msg("reminder service stopped")
	}()
	return nil
}

// Sweep reminds owners of active bookings that start tomorrow. Each booking
// is reminded at most once.
func (s *Service) Sweep(ctx context.Context) (Stats, error) {
	// Overlapping cron runs would double-send before the dedup row lands.
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(started).Seconds()) }()

	now := s.now().In(s.config.Location)
	y, m, d := now.Date()
	from := time.Date(y, m, d+1, 0, 0, 0, 0, s.config.Location)
	to := from.AddDate(0, 0, 1).Add(-time.Second)

	bookings, err := s.store.ActiveBookingsBetween(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("load tomorrow's bookings: %w", err)
	}

	var (
		stats Stats
		smu   sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, s.config.MaxConcurrentNotifications)
	)
	record := func(f func(*Stats)) {
		smu.Lock()
		f(&stats)
		smu.Unlock()
	}

	for _, b := range bookings {
		record(func(st *Stats) { st.Checked++ })
		if !b.HasOwner() || !b.IsActive() {
			record(func(st *Stats) { st.Skipped++ })
			continue
		}
		sent, err := s.store.IsReminderSent(ctx, b.ID)
		if err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to check reminder state")
			record(func(st *Stats) { st.Failed++ })
			continue
		}
		if sent {
			record(func(st *Stats) { st.Skipped++ })
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(b model.Booking) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.sender.SendReminder(ctx, b); err != nil {
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to send reminder")
				s.metrics.IncSent("failed")
				record(func(st *Stats) { st.Failed++ })
				return
			}
			if err := s.store.MarkReminderSent(ctx, b.ID); err != nil {
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to mark reminder as sent (notification was sent)")
			}
			s.metrics.IncSent("sent")
			record(func(st *Stats) { st.Sent++ })
		}(b)
	}
	wg.Wait()

	s.logger.Info().
		Int("checked", stats.Checked).
		Int("sent", stats.Sent).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("reminder sweep finished")
	return stats, nil
}

// Cleanup removes dedup rows past retention.
func (s *Service) Cleanup(ctx context.Context) int64 {
	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	n, err := s.store.CleanupReminders(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to cleanup reminders")
		return 0
	}
	if n > 0 {
		s.metrics.IncCleanedUp(n)
		s.logger.Info().Int64("deleted", n).Msg("cleaned up old reminders")
	}
	return n
}
