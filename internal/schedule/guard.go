package schedule

import (
	"context"
	"fmt"
	"time"
)

// BookingRequest is a candidate booking checked by the guard.
type BookingRequest struct {
	OwnerID         *int64
	Start           time.Time
	DurationMinutes int
	CreatedByDoctor bool
	// RescheduleOf is set when an existing booking moves; its own quanta and
	// its owner's capacity are ignored.
	RescheduleOf int64
}

// Validate rejects malformed requests before any storage access.
func (r BookingRequest) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrInvalidInput)
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if r.Start.Second() != 0 || r.Start.Nanosecond() != 0 || r.Start.Minute()%QuantumMinutes != 0 {
		return fmt.Errorf("%w: start %s is not aligned to %d minutes", ErrInvalidInput, r.Start.Format("15:04:05"), QuantumMinutes)
	}
	return nil
}

// CheckBooking runs the capacity check and the race-check.
// It returns ErrCapacityExceeded or ErrSlotUnavailable so callers can tell them apart.
func (e *Engine) CheckBooking(ctx context.Context, req BookingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if req.OwnerID != nil && !req.CreatedByDoctor && req.RescheduleOf == 0 {
		has, err := e.HasActiveBooking(ctx, *req.OwnerID)
		if err != nil {
			return err
		}
		if has {
			return ErrCapacityExceeded
		}
	}

	ok, err := e.isSlotAvailable(ctx, req.Start, req.DurationMinutes, req.RescheduleOf)
	if err != nil {
		return fmt.Errorf("race-check: %w", err)
	}
	if !ok {
		return ErrSlotUnavailable
	}
	return nil
}

// HasActiveBooking reports whether the owner already holds an active booking.
func (e *Engine) HasActiveBooking(ctx context.Context, ownerID int64) (bool, error) {
	n, err := e.store.CountActiveBookingsByOwner(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("count active bookings: %w", err)
	}
	return n >= 1, nil
}
