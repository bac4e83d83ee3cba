package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// ResolveSchedule returns the working window for date.
// ok is false when there is no service that day.
func (e *Engine) ResolveSchedule(ctx context.Context, date time.Time) (model.Window, bool, error) {
	day := e.Day(date)

	overrides, err := e.store.OverridesForWeekday(ctx, day.Weekday())
	if err != nil {
		return model.Window{}, false, fmt.Errorf("load overrides: %w", err)
	}
	if o, found := latestOverride(overrides, day); found {
		return o.Window, true, nil
	}

	w, ok := e.Template()[day.Weekday()]
	if !ok || !w.Valid() {
		return model.Window{}, false, nil
	}
	return w, true, nil
}

// latestOverride picks the covering override with the latest EffectiveFrom.
// Ties go to the most recently created one.
func latestOverride(overrides []model.ScheduleOverride, day time.Time) (model.ScheduleOverride, bool) {
	var (
		best  model.ScheduleOverride
		found bool
	)
	for _, o := range overrides {
		if !o.Covers(day) {
			continue
		}
		if !found {
			best, found = o, true
			continue
		}
		from, bestFrom := model.DateOnly(o.EffectiveFrom), model.DateOnly(best.EffectiveFrom)
		if from.After(bestFrom) || (from.Equal(bestFrom) && o.ID > best.ID) {
			best = o
		}
	}
	return best, found
}

// IsDateAvailable reports whether date is free of holidays and absences.
func (e *Engine) IsDateAvailable(ctx context.Context, date time.Time) (bool, error) {
	day := e.Day(date)

	blocked, err := e.store.IsBlockedDate(ctx, day)
	if err != nil {
		return false, fmt.Errorf("check blocked date: %w", err)
	}
	if blocked {
		return false, nil
	}

	absences, err := e.store.AbsencesOverlapping(ctx, day, model.EndOfDay(day))
	if err != nil {
		return false, fmt.Errorf("check absences: %w", err)
	}
	return len(absences) == 0, nil
}

// IsDateAvailableFor additionally requires the day to have service for the
// requested mode. Calendar pickers use it to disable dates.
func (e *Engine) IsDateAvailableFor(ctx context.Context, date time.Time, restricted bool) (bool, error) {
	ok, err := e.IsDateAvailable(ctx, date)
	if err != nil || !ok {
		return false, err
	}
	day := e.Day(date)
	if restricted {
		return day.Weekday() == e.RestrictedMode().Weekday, nil
	}
	_, open, err := e.ResolveSchedule(ctx, day)
	return open, err
}
