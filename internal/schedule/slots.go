package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// ComputeAvailableSlots returns the bookable start times on date in ascending order.
// An empty result means the day is closed or fully booked.
func (e *Engine) ComputeAvailableSlots(ctx context.Context, date time.Time, durationMinutes int, restricted bool) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration %d", ErrInvalidInput, durationMinutes)
	}
	day := e.Day(date)
	key := SlotKey{Date: day, DurationMinutes: durationMinutes, Restricted: restricted}

	if e.cache != nil {
		if slots, ok := e.cache.Get(ctx, key); ok {
			metrics.IncSlotCache("hit")
			return slots, nil
		}
		metrics.IncSlotCache("miss")
	}

	started := time.Now()
	slots, err := e.computeSlots(ctx, day, durationMinutes, restricted)
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlotComputation(modeLabel(restricted), time.Since(started))

	if e.cache != nil {
		e.cache.Set(ctx, key, slots)
	}
	return slots, nil
}

func (e *Engine) computeSlots(ctx context.Context, day time.Time, durationMinutes int, restricted bool) ([]time.Time, error) {
	available, err := e.IsDateAvailable(ctx, day)
	if err != nil {
		return nil, err
	}
	if !available {
		return []time.Time{}, nil
	}

	candidates, err := e.candidates(ctx, day, durationMinutes, restricted)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []time.Time{}, nil
	}

	occ, err := e.OccupancyFor(ctx, day)
	if err != nil {
		return nil, err
	}

	slots := make([]time.Time, 0, len(candidates))
	for _, c := range candidates {
		if !occ.Overlaps(c, durationMinutes) {
			slots = append(slots, c)
		}
	}

	e.logger.Debug().
		Str("date", day.Format("2006-01-02")).
		Int("duration", durationMinutes).
		Bool("restricted", restricted).
		Int("candidates", len(candidates)).
		Int("available", len(slots)).
		Msg("slots computed")
	return slots, nil
}

// candidates lists start times before the occupancy filter.
func (e *Engine) candidates(ctx context.Context, day time.Time, durationMinutes int, restricted bool) ([]time.Time, error) {
	if restricted {
		rm := e.RestrictedMode()
		if day.Weekday() != rm.Weekday {
			return nil, nil
		}
		out := make([]time.Time, 0, len(rm.Starts))
		for _, s := range rm.Starts {
			out = append(out, s.On(day))
		}
		return out, nil
	}

	w, open, err := e.ResolveSchedule(ctx, day)
	if err != nil || !open {
		return nil, err
	}
	var out []time.Time
	for t := w.Open; t+model.TimeOfDay(durationMinutes) <= w.Close; t += QuantumMinutes {
		out = append(out, t.On(day))
	}
	return out, nil
}

// IsSlotAvailable re-checks a specific start against fresh storage data.
// It is the race-check run immediately before a booking is committed.
func (e *Engine) IsSlotAvailable(ctx context.Context, start time.Time, durationMinutes int) (bool, error) {
	return e.isSlotAvailable(ctx, start, durationMinutes, 0)
}

func (e *Engine) isSlotAvailable(ctx context.Context, start time.Time, durationMinutes int, excludeID int64) (bool, error) {
	if start.IsZero() || durationMinutes <= 0 {
		return false, ErrInvalidInput
	}
	start = start.In(e.cfg.Location)

	available, err := e.IsDateAvailable(ctx, start)
	if err != nil || !available {
		return false, err
	}

	occ, err := e.OccupancyFor(ctx, start)
	if err != nil {
		return false, err
	}
	if excludeID != 0 {
		occ = occ.Without(excludeID)
	}
	return !occ.Overlaps(start, durationMinutes), nil
}

func modeLabel(restricted bool) string {
	if restricted {
		return "restricted"
	}
	return "regular"
}
