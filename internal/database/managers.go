package database

import (
	"context"
	"time"
)

// Manager is an administrator who unlocked the panel with the password.
type Manager struct {
	UserID  int64
	ChatID  int64
	Name    string
	AddedAt time.Time
}

// IsManager checks if a user is a manager.
func (db *DB) IsManager(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM managers WHERE user_id = ?",
		userID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddManager adds a new manager.
func (db *DB) AddManager(ctx context.Context, userID, chatID int64, name string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO managers (user_id, chat_id, name, added_at)
		VALUES (?, ?, ?, ?)`,
		userID, chatID, name, time.Now(),
	)
	return err
}

// RemoveManager removes a manager.
func (db *DB) RemoveManager(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM managers WHERE user_id = ?",
		userID,
	)
	return err
}

// ListManagers returns all managers.
func (db *DB) ListManagers(ctx context.Context) ([]Manager, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT user_id, chat_id, name, added_at FROM managers ORDER BY added_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var managers []Manager
	for rows.Next() {
		var m Manager
		if err := rows.Scan(&m.UserID, &m.ChatID, &m.Name, &m.AddedAt); err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// ManagerChatIDs returns the chats admin notifications go to.
func (db *DB) ManagerChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT chat_id FROM managers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, rows.Err()
}
