package notify

import (
	"context"
	"fmt"

	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// Register subscribes the notifier to booking, schedule and order events.
func (n *Notifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, n.onBookingCreated)
	bus.Subscribe(events.BookingCancelled, n.onBookingCancelled)
	bus.Subscribe(events.BookingRescheduled, n.onBookingRescheduled)
	bus.Subscribe(events.ScheduleChanged, n.onScheduleChanged)
	bus.Subscribe(events.OrderCreated, n.onOrderCreated)
}

func bookingOf(p events.BookingPayload) model.Booking {
	return model.Booking{
		ID:              p.BookingID,
		OwnerID:         p.OwnerID,
		FullName:        p.FullName,
		Phone:           p.Phone,
		Service:         p.Service,
		Comment:         p.Comment,
		Start:           p.Start,
		DurationMinutes: p.DurationMinutes,
		CreatedByDoctor: p.CreatedByDoctor,
	}
}

func (n *Notifier) onBookingCreated(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	b := bookingOf(p)

	var err error
	if b.HasOwner() && !b.CreatedByDoctor {
		if err = n.Send(ctx, *b.OwnerID, ConfirmationText(b), "confirmation"); err != nil {
			err = fmt.Errorf("confirmation for booking %d: %w", b.ID, err)
		}
	}
	if !b.CreatedByDoctor {
		n.NotifyAdmins(ctx, AdminNewBookingText(b), "admin_booking")
	}
	return err
}

func (n *Notifier) onBookingCancelled(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	b := bookingOf(p)
	// The client already sees the result of their own cancellation in the dialog.
	if p.ByClient {
		n.NotifyAdmins(ctx, AdminCancelledText(b, p.Reason), "admin_cancellation")
		return nil
	}
	if !b.HasOwner() {
		return nil
	}
	if err := n.Send(ctx, *b.OwnerID, CancellationText(b, p.Reason), "cancellation"); err != nil {
		return fmt.Errorf("cancellation for booking %d: %w", b.ID, err)
	}
	return nil
}

func (n *Notifier) onBookingRescheduled(ctx context.Context, ev events.Event) error {
	var p events.BookingPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	b := bookingOf(p)
	if !b.HasOwner() {
		return nil
	}
	if err := n.Send(ctx, *b.OwnerID, ChangeText(b, p.PreviousStart), "change"); err != nil {
		return fmt.Errorf("change notice for booking %d: %w", b.ID, err)
	}
	return nil
}

func (n *Notifier) onScheduleChanged(ctx context.Context, ev events.Event) error {
	var p events.ScheduleChangedPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	text := fmt.Sprintf("✅ %s\nОтменено записей: %d", p.Summary, p.Cancelled)
	n.NotifyAdmins(ctx, text, "admin_schedule")
	return nil
}

func (n *Notifier) onOrderCreated(ctx context.Context, ev events.Event) error {
	var p events.OrderPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	o := model.Order{
		ID:       p.OrderID,
		OwnerID:  p.OwnerID,
		FullName: p.FullName,
		Phone:    p.Phone,
		Products: p.Products,
		Comment:  p.Comment,
	}
	n.NotifyAdmins(ctx, AdminNewOrderText(o), "admin_order")
	return nil
}

// SendReminder delivers the day-before reminder for b.
func (n *Notifier) SendReminder(ctx context.Context, b model.Booking) error {
	if !b.HasOwner() {
		return nil
	}
	return n.Send(ctx, *b.OwnerID, ReminderText(b), "reminder")
}
