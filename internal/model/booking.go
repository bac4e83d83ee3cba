package model

import "time"

// BookingStatus is the lifecycle state of an appointment.
type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Booking is a confirmed appointment.
type Booking struct {
	ID              int64
	OwnerID         *int64 // Telegram user; nil for bookings entered by the doctor
	FullName        string
	Phone           string
	Start           time.Time
	DurationMinutes int
	Service         string
	Comment         string
	Status          BookingStatus
	CalendarEventID string
	CreatedByDoctor bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End returns the end of the appointment.
func (b Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// IsActive reports whether the booking still occupies its slot.
func (b Booking) IsActive() bool {
	return b.Status == BookingActive
}

// HasOwner reports whether the booking belongs to a Telegram user.
func (b Booking) HasOwner() bool {
	return b.OwnerID != nil && *b.OwnerID != 0
}

// OrderStatus is the processing state of a supplement order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderProcessed OrderStatus = "processed"
)

// Order is a request to buy dietary supplements.
type Order struct {
	ID        int64
	OwnerID   *int64
	FullName  string
	Phone     string
	Products  string
	Comment   string
	Status    OrderStatus
	CreatedAt time.Time
}

// User is a client known to the bot.
type User struct {
	TelegramID int64
	FullName   string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
