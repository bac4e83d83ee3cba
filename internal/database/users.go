package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// UpsertUser remembers the client's name and phone for the next booking.
func (db *DB) UpsertUser(ctx context.Context, u *model.User) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, full_name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			full_name = excluded.full_name,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		u.TelegramID, u.FullName, u.Phone, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.TelegramID, err)
	}
	return nil
}

// GetUser returns a known client or nil.
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User
	err := db.QueryRowContext(ctx,
		`SELECT telegram_id, full_name, phone, created_at, updated_at FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.TelegramID, &u.FullName, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return &u, nil
}
