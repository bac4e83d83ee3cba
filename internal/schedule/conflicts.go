package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// FindScheduleChangeConflicts returns future active bookings on weekday whose
// start falls outside the new window. Only the start minute is compared, so a
// booking that begins inside the window but runs past its close is not reported.
func (e *Engine) FindScheduleChangeConflicts(ctx context.Context, weekday time.Weekday, w model.Window) ([]model.Booking, error) {
	if !w.Valid() || !w.Aligned(QuantumMinutes) {
		return nil, fmt.Errorf("%w: window %s", ErrInvalidInput, w)
	}
	bookings, err := e.store.ActiveBookingsSince(ctx, e.Now())
	if err != nil {
		return nil, fmt.Errorf("load future bookings: %w", err)
	}

	var conflicts []model.Booking
	for _, b := range bookings {
		local := b.Start.In(e.cfg.Location)
		if local.Weekday() != weekday {
			continue
		}
		if !w.Contains(model.TimeOfDayOf(local)) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

// FindAbsenceConflicts returns active bookings starting within [start, end].
func (e *Engine) FindAbsenceConflicts(ctx context.Context, start, end time.Time) ([]model.Booking, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: absence ends before it starts", ErrInvalidInput)
	}
	bookings, err := e.store.ActiveBookingsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bookings in absence: %w", err)
	}
	return bookings, nil
}
