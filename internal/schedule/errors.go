package schedule

import "errors"

var (
	// ErrInvalidInput is returned for malformed times or durations.
	ErrInvalidInput = errors.New("invalid booking input")
	// ErrSlotUnavailable is returned when the requested time is taken or closed.
	ErrSlotUnavailable = errors.New("slot is no longer available")
	// ErrCapacityExceeded is returned when the owner already has an active booking.
	ErrCapacityExceeded = errors.New("owner already has an active booking")
)
