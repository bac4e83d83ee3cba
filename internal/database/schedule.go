package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

const dateLayout = "2006-01-02"

// CreateOverride stores a schedule change for a weekday.
func (db *DB) CreateOverride(ctx context.Context, o *model.ScheduleOverride) error {
	if !o.Window.Valid() {
		return fmt.Errorf("create override: invalid window %s", o.Window)
	}
	var to sql.NullString
	if o.EffectiveTo != nil {
		to = sql.NullString{String: o.EffectiveTo.Format(dateLayout), Valid: true}
	}
	o.CreatedAt = time.Now()

	res, err := db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (weekday, open_minute, close_minute, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int(o.Weekday), int(o.Window.Open), int(o.Window.Close),
		o.EffectiveFrom.Format(dateLayout), to, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create override: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

// OverridesForWeekday returns all overrides recorded for weekday.
func (db *DB) OverridesForWeekday(ctx context.Context, weekday time.Weekday) ([]model.ScheduleOverride, error) {
	return db.queryOverrides(ctx, `
		SELECT id, weekday, open_minute, close_minute, effective_from, effective_to, created_at
		FROM schedule_overrides WHERE weekday = ?
		ORDER BY effective_from DESC, id DESC`,
		int(weekday),
	)
}

// ListOverrides returns every override, newest first.
func (db *DB) ListOverrides(ctx context.Context) ([]model.ScheduleOverride, error) {
	return db.queryOverrides(ctx, `
		SELECT id, weekday, open_minute, close_minute, effective_from, effective_to, created_at
		FROM schedule_overrides
		ORDER BY effective_from DESC, id DESC`)
}

// EndOverride bounds an override so it stops applying after date.
func (db *DB) EndOverride(ctx context.Context, id int64, date time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE schedule_overrides SET effective_to = ? WHERE id = ?`,
		date.Format(dateLayout), id,
	)
	if err != nil {
		return fmt.Errorf("end override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

func (db *DB) queryOverrides(ctx context.Context, query string, args ...any) ([]model.ScheduleOverride, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleOverride
	for rows.Next() {
		var (
			o                 model.ScheduleOverride
			weekday           int
			openMin, closeMin int
			from              string
			to                sql.NullString
		)
		if err := rows.Scan(&o.ID, &weekday, &openMin, &closeMin, &from, &to, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Weekday = time.Weekday(weekday)
		o.Window = model.Window{Open: model.TimeOfDay(openMin), Close: model.TimeOfDay(closeMin)}
		if o.EffectiveFrom, err = time.ParseInLocation(dateLayout, from, db.loc); err != nil {
			return nil, fmt.Errorf("override %d: %w", o.ID, err)
		}
		if to.Valid {
			end, err := time.ParseInLocation(dateLayout, to.String, db.loc)
			if err != nil {
				return nil, fmt.Errorf("override %d: %w", o.ID, err)
			}
			o.EffectiveTo = &end
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateAbsence stores a vacation or sick leave.
func (db *DB) CreateAbsence(ctx context.Context, a *model.AbsencePeriod) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("create absence: unknown kind %q", a.Kind)
	}
	if a.End.Before(a.Start) {
		return fmt.Errorf("create absence: end before start")
	}
	a.CreatedAt = time.Now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO absences (kind, start_at, end_at, created_at) VALUES (?, ?, ?, ?)`,
		string(a.Kind), a.Start.Unix(), a.End.Unix(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// AbsencesOverlapping returns absences intersecting [from, to].
func (db *DB) AbsencesOverlapping(ctx context.Context, from, to time.Time) ([]model.AbsencePeriod, error) {
	return db.queryAbsences(ctx, `
		SELECT id, kind, start_at, end_at, created_at FROM absences
		WHERE start_at <= ? AND end_at >= ?
		ORDER BY start_at`,
		to.Unix(), from.Unix(),
	)
}

// UpcomingAbsences returns absences that have not ended before since.
func (db *DB) UpcomingAbsences(ctx context.Context, since time.Time) ([]model.AbsencePeriod, error) {
	return db.queryAbsences(ctx, `
		SELECT id, kind, start_at, end_at, created_at FROM absences
		WHERE end_at >= ?
		ORDER BY start_at`,
		since.Unix(),
	)
}

func (db *DB) queryAbsences(ctx context.Context, query string, args ...any) ([]model.AbsencePeriod, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AbsencePeriod
	for rows.Next() {
		var (
			a          model.AbsencePeriod
			kind       string
			start, end int64
		)
		if err := rows.Scan(&a.ID, &kind, &start, &end, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = model.AbsenceKind(kind)
		a.Start = time.Unix(start, 0).In(db.loc)
		a.End = time.Unix(end, 0).In(db.loc)
		out = append(out, a)
	}
	return out, rows.Err()
}

// BlockDate marks a day as a holiday. Re-blocking updates the description.
func (db *DB) BlockDate(ctx context.Context, date time.Time, description string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocked_dates (date, description, created_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET description = excluded.description`,
		date.Format(dateLayout), nullString(description), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("block date %s: %w", date.Format(dateLayout), err)
	}
	return nil
}

// UnblockDate removes a holiday. Removing an absent date is a no-op.
func (db *DB) UnblockDate(ctx context.Context, date time.Time) error {
	_, err := db.ExecContext(ctx, `DELETE FROM blocked_dates WHERE date = ?`, date.Format(dateLayout))
	return err
}

// IsBlockedDate reports whether date is a holiday.
func (db *DB) IsBlockedDate(ctx context.Context, date time.Time) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_dates WHERE date = ?`, date.Format(dateLayout),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BlockedDatesFrom lists holidays on or after from.
func (db *DB) BlockedDatesFrom(ctx context.Context, from time.Time) ([]model.BlockedDate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date, description FROM blocked_dates WHERE date >= ? ORDER BY date`,
		from.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedDate
	for rows.Next() {
		var (
			day  string
			desc sql.NullString
		)
		if err := rows.Scan(&day, &desc); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation(dateLayout, day, db.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, model.BlockedDate{Date: d, Description: desc.String})
	}
	return out, rows.Err()
}

// SyncHolidays applies configured holidays. Failures on individual dates are
// logged and skipped.
func (db *DB) SyncHolidays(ctx context.Context, holidays []model.BlockedDate) int {
	applied := 0
	for _, h := range holidays {
		if err := db.BlockDate(ctx, h.Date, h.Description); err != nil {
			db.logger.Warn().Err(err).Str("date", h.Date.Format(dateLayout)).Msg("Holiday sync skipped")
			continue
		}
		applied++
	}
	return applied
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrOverrideNotFound) || errors.Is(err, ErrOrderNotFound)
}
