package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// Occupancy maps occupied quantum start times (unix seconds) to the booking holding them.
type Occupancy map[int64]int64

// QuantaCount returns how many quanta a duration covers, rounding up.
func QuantaCount(durationMinutes int) int {
	if durationMinutes <= 0 {
		return 0
	}
	return (durationMinutes + QuantumMinutes - 1) / QuantumMinutes
}

// Quanta lists the quantum marks of [start, start+duration).
func Quanta(start time.Time, durationMinutes int) []time.Time {
	n := QuantaCount(durationMinutes)
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.Add(time.Duration(i*QuantumMinutes)*time.Minute))
	}
	return out
}

// BuildOccupancy marks the quanta of every active booking.
func BuildOccupancy(bookings []model.Booking) Occupancy {
	occ := make(Occupancy)
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		for _, q := range Quanta(b.Start, b.DurationMinutes) {
			occ[q.Unix()] = b.ID
		}
	}
	return occ
}

// Occupied reports whether the quantum starting at t is taken.
func (o Occupancy) Occupied(t time.Time) bool {
	_, ok := o[t.Unix()]
	return ok
}

// Overlaps reports whether any quantum of [start, start+duration) is taken.
func (o Occupancy) Overlaps(start time.Time, durationMinutes int) bool {
	for _, q := range Quanta(start, durationMinutes) {
		if o.Occupied(q) {
			return true
		}
	}
	return false
}

// Without returns a copy with the quanta of bookingID released.
func (o Occupancy) Without(bookingID int64) Occupancy {
	out := make(Occupancy, len(o))
	for q, id := range o {
		if id != bookingID {
			out[q] = id
		}
	}
	return out
}

// OccupancyFor builds the occupancy index for date's active bookings.
func (e *Engine) OccupancyFor(ctx context.Context, date time.Time) (Occupancy, error) {
	day := e.Day(date)
	bookings, err := e.store.ActiveBookingsBetween(ctx, day, model.EndOfDay(day))
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return BuildOccupancy(bookings), nil
}
