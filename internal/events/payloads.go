package events

import "time"

// BookingPayload describes a booking at the moment of the event.
type BookingPayload struct {
	BookingID       int64     `json:"booking_id"`
	OwnerID         *int64    `json:"owner_id,omitempty"`
	FullName        string    `json:"full_name"`
	Phone           string    `json:"phone"`
	Service         string    `json:"service"`
	Comment         string    `json:"comment,omitempty"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedByDoctor bool      `json:"created_by_doctor"`
	// Set on cancellations.
	Reason   string `json:"reason,omitempty"`
	ByClient bool   `json:"by_client,omitempty"`
	// Set on reschedules.
	PreviousStart *time.Time `json:"previous_start,omitempty"`
}

// ScheduleChangedPayload is published after hours, absences or holidays change.
type ScheduleChangedPayload struct {
	Kind      string `json:"kind"` // "hours", "absence", "holiday"
	Summary   string `json:"summary"`
	Cancelled int    `json:"cancelled"`
}

// OrderPayload describes a new supplement order.
type OrderPayload struct {
	OrderID  int64  `json:"order_id"`
	OwnerID  *int64 `json:"owner_id,omitempty"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Products string `json:"products"`
	Comment  string `json:"comment,omitempty"`
}
