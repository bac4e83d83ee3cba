package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

const bookingColumns = `id, owner_id, full_name, phone, start_at, duration_minutes, service,
	comment, status, calendar_event_id, created_by_doctor, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b       model.Booking
		owner   sql.NullInt64
		startAt int64
		comment sql.NullString
		eventID sql.NullString
		status  string
	)
	err := row.Scan(
		&b.ID, &owner, &b.FullName, &b.Phone, &startAt, &b.DurationMinutes, &b.Service,
		&comment, &status, &eventID, &b.CreatedByDoctor, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}
	if owner.Valid {
		id := owner.Int64
		b.OwnerID = &id
	}
	b.Start = time.Unix(startAt, 0).In(db.loc)
	b.Comment = comment.String
	b.CalendarEventID = eventID.String
	b.Status = model.BookingStatus(status)
	return b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBooking inserts an active booking and reserves its quanta in one transaction.
// ErrSlotTaken is returned when any quantum is already held.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	now := time.Now()
	b.Status = model.BookingActive
	b.CreatedAt = now
	b.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner any
	if b.OwnerID != nil {
		owner = *b.OwnerID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (owner_id, full_name, phone, start_at, duration_minutes, service,
			comment, status, calendar_event_id, created_by_doctor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, b.FullName, b.Phone, b.Start.Unix(), b.DurationMinutes, b.Service,
		nullString(b.Comment), string(b.Status), nullString(b.CalendarEventID), b.CreatedByDoctor, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}

	if err := reserveQuanta(ctx, tx, id, b.Start, b.DurationMinutes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	b.ID = id
	return nil
}

func reserveQuanta(ctx context.Context, tx *sql.Tx, bookingID int64, start time.Time, duration int) error {
	for _, q := range schedule.Quanta(start, duration) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO booking_quanta (quantum, booking_id) VALUES (?, ?)`,
			q.Unix(), bookingID,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("reserve quantum: %w", err)
		}
	}
	return nil
}

// ensureQuanta restores the quanta index for active bookings created before it existed.
func (db *DB) ensureQuanta(ctx context.Context) error {
	bookings, err := db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings b
		WHERE status = 'active'
		  AND NOT EXISTS (SELECT 1 FROM booking_quanta q WHERE q.booking_id = b.id)`)
	if err != nil {
		return err
	}
	for _, b := range bookings {
		for _, q := range schedule.Quanta(b.Start, b.DurationMinutes) {
			if _, err := db.ExecContext(ctx,
				`INSERT OR IGNORE INTO booking_quanta (quantum, booking_id) VALUES (?, ?)`,
				q.Unix(), b.ID,
			); err != nil {
				return err
			}
		}
	}
	if len(bookings) > 0 {
		db.logger.Info().Int("bookings", len(bookings)).Msg("Slot index rebuilt")
	}
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &b, nil
}

// ActiveBookingsBetween returns active bookings with start in [from, to].
func (db *DB) ActiveBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'active' AND start_at >= ? AND start_at <= ?
		ORDER BY start_at`,
		from.Unix(), to.Unix(),
	)
}

// ActiveBookingsSince returns active bookings with start >= from.
func (db *DB) ActiveBookingsSince(ctx context.Context, from time.Time) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'active' AND start_at >= ?
		ORDER BY start_at`,
		from.Unix(),
	)
}

// BookingsBetween returns bookings of any status with start in [from, to].
func (db *DB) BookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE start_at >= ? AND start_at <= ?
		ORDER BY start_at`,
		from.Unix(), to.Unix(),
	)
}

// ActiveBookingsByOwner returns the owner's active bookings.
func (db *DB) ActiveBookingsByOwner(ctx context.Context, ownerID int64) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE owner_id = ? AND status = 'active'
		ORDER BY start_at`,
		ownerID,
	)
}

// CountActiveBookingsByOwner counts the owner's active bookings.
func (db *DB) CountActiveBookingsByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE owner_id = ? AND status = 'active'`,
		ownerID,
	).Scan(&n)
	return n, err
}

// UpdateBookingStatus moves an active booking to a final status and releases its quanta.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	if status == model.BookingActive {
		return fmt.Errorf("cannot reactivate booking %d", id)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = 'active'`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.missingOrFinal(ctx, tx, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_quanta WHERE booking_id = ?`, id); err != nil {
		return fmt.Errorf("release quanta: %w", err)
	}
	return tx.Commit()
}

// RescheduleBooking moves an active booking to a new start.
func (db *DB) RescheduleBooking(ctx context.Context, id int64, start time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var duration int
	err = tx.QueryRowContext(ctx,
		`SELECT duration_minutes FROM bookings WHERE id = ? AND status = 'active'`, id,
	).Scan(&duration)
	if errors.Is(err, sql.ErrNoRows) {
		return db.missingOrFinal(ctx, tx, id)
	}
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_quanta WHERE booking_id = ?`, id); err != nil {
		return fmt.Errorf("release quanta: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET start_at = ?, updated_at = ? WHERE id = ?`,
		start.Unix(), time.Now(), id,
	); err != nil {
		return fmt.Errorf("move booking: %w", err)
	}
	if err := reserveQuanta(ctx, tx, id, start, duration); err != nil {
		return err
	}
	// A moved booking is due a fresh reminder for its new day.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sent_reminders WHERE booking_id = ?`, id); err != nil {
		return fmt.Errorf("reset reminder: %w", err)
	}
	return tx.Commit()
}

// SetCalendarEventID stores the remote calendar event mirrored from the booking.
func (db *DB) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET calendar_event_id = ?, updated_at = ? WHERE id = ?`,
		nullString(eventID), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set calendar event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (db *DB) missingOrFinal(ctx context.Context, tx *sql.Tx, id int64) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAlreadyFinal, strings.ToLower(status))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
