package database

import (
	"context"
	"time"
)

// IsReminderSent reports whether a reminder for the booking already went out.
func (db *DB) IsReminderSent(ctx context.Context, bookingID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_reminders WHERE booking_id = ?`, bookingID,
	).Scan(&n)
	return n > 0, err
}

// MarkReminderSent records a delivered reminder. Repeated calls are no-ops.
func (db *DB) MarkReminderSent(ctx context.Context, bookingID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_reminders (booking_id, sent_at) VALUES (?, ?)`,
		bookingID, time.Now().Unix(),
	)
	return err
}

// CleanupReminders drops dedup rows older than before.
func (db *DB) CleanupReminders(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sent_reminders WHERE sent_at < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
