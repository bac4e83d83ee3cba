package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrSlotTaken        = errors.New("time slot already taken")
	ErrAlreadyFinal     = errors.New("booking is not active")
	ErrOverrideNotFound = errors.New("schedule override not found")
	ErrOrderNotFound    = errors.New("order not found")
)

// NewDB opens the database and creates tables if they don't exist.
// Times read back from storage are expressed in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	instance := &DB{
		DB:     db,
		path:   path,
		loc:    loc,
		logger: logger,
	}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := instance.ensureQuanta(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to rebuild slot index: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		// Клиенты
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		// Записи на приём
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL,
			service TEXT NOT NULL,
			comment TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			calendar_event_id TEXT,
			created_by_doctor BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status_start ON bookings(status, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_owner_status ON bookings(owner_id, status)`,
		// Занятые 30-минутные кванты активных записей; защита от двойного бронирования
		`CREATE TABLE IF NOT EXISTS booking_quanta (
			quantum INTEGER PRIMARY KEY,
			booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_quanta_booking ON booking_quanta(booking_id)`,
		// Изменения расписания по дням недели
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			weekday INTEGER NOT NULL,
			open_minute INTEGER NOT NULL,
			close_minute INTEGER NOT NULL,
			effective_from TEXT NOT NULL,
			effective_to TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_overrides_weekday ON schedule_overrides(weekday, effective_from)`,
		// Отпуска и больничные
		`CREATE TABLE IF NOT EXISTS absences (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_absences_range ON absences(start_at, end_at)`,
		// Праздничные дни
		`CREATE TABLE IF NOT EXISTS blocked_dates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at DATETIME NOT NULL
		)`,
		// Заказы БАДов
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			products TEXT NOT NULL,
			comment TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		// Отправленные напоминания
		`CREATE TABLE IF NOT EXISTS sent_reminders (
			booking_id INTEGER PRIMARY KEY,
			sent_at INTEGER NOT NULL
		)`,
		// Администраторы, вошедшие по паролю
		`CREATE TABLE IF NOT EXISTS managers (
			user_id INTEGER PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return db.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the first release.
func (db *DB) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE bookings ADD COLUMN created_by_doctor BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE bookings ADD COLUMN calendar_event_id TEXT`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			db.logger.Debug().Err(err).Str("migration", m).Msg("Migration skipped")
		}
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLite constraint failure.
func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func (db *DB) Close() error {
	return db.DB.Close()
}
