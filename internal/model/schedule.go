package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (or "H:MM"). Trailing input is an error.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for package-level defaults.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the time of day of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Aligned reports whether t falls on a step-minute boundary.
func (t TimeOfDay) Aligned(step int) bool {
	return step > 0 && int(t)%step == 0
}

// On returns the absolute time of t on the given date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

// Window is an open/close pair within one day. Close is exclusive.
type Window struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return w.Open >= 0 && w.Close > w.Open && w.Close <= 24*60
}

// Aligned reports whether both ends fall on step-minute boundaries.
func (w Window) Aligned(step int) bool {
	return w.Open.Aligned(step) && w.Close.Aligned(step)
}

// Contains reports whether t is inside [Open, Close).
func (w Window) Contains(t TimeOfDay) bool {
	return t >= w.Open && t < w.Close
}

func (w Window) String() string {
	return w.Open.String() + " - " + w.Close.String()
}

// WeeklyTemplate is the standing schedule. A missing weekday is closed.
type WeeklyTemplate map[time.Weekday]Window

// DefaultWeeklyTemplate returns the clinic's standing hours.
func DefaultWeeklyTemplate() WeeklyTemplate {
	afternoon := Window{Open: MustTimeOfDay("13:00"), Close: MustTimeOfDay("19:00")}
	morning := Window{Open: MustTimeOfDay("09:00"), Close: MustTimeOfDay("15:00")}
	return WeeklyTemplate{
		time.Tuesday:   afternoon,
		time.Wednesday: afternoon,
		time.Thursday:  afternoon,
		time.Friday:    morning,
		time.Saturday:  morning,
	}
}

// ScheduleOverride replaces the template window for a weekday within a date range.
type ScheduleOverride struct {
	ID            int64
	Weekday       time.Weekday
	Window        Window
	EffectiveFrom time.Time
	EffectiveTo   *time.Time // nil = open-ended
	CreatedAt     time.Time
}

// Covers reports whether the override is in effect on date.
// Only calendar dates are compared.
func (o ScheduleOverride) Covers(date time.Time) bool {
	if o.Weekday != date.Weekday() {
		return false
	}
	day := DateOnly(date)
	if DateOnly(o.EffectiveFrom).After(day) {
		return false
	}
	if o.EffectiveTo != nil && DateOnly(*o.EffectiveTo).Before(day) {
		return false
	}
	return true
}

// AbsenceKind is the reason the practitioner is away.
type AbsenceKind string

const (
	AbsenceVacation  AbsenceKind = "vacation"
	AbsenceSickLeave AbsenceKind = "sick_leave"
)

// Valid reports whether k is a known kind.
func (k AbsenceKind) Valid() bool {
	return k == AbsenceVacation || k == AbsenceSickLeave
}

// CancelReason is the text sent to clients whose bookings are cancelled by this absence.
func (k AbsenceKind) CancelReason() string {
	if k == AbsenceSickLeave {
		return "Больничный врача"
	}
	return "Отпуск врача"
}

// Title is the admin-facing label.
func (k AbsenceKind) Title() string {
	if k == AbsenceSickLeave {
		return "Больничный"
	}
	return "Отпуск"
}

// AbsencePeriod blocks [Start, End] entirely.
type AbsencePeriod struct {
	ID        int64
	Kind      AbsenceKind
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

// Overlaps reports whether the absence intersects [from, to].
func (a AbsencePeriod) Overlaps(from, to time.Time) bool {
	return !a.Start.After(to) && !a.End.Before(from)
}

// BlockedDate is a holiday or other closed calendar day.
type BlockedDate struct {
	Date        time.Time
	Description string
}

// RestrictedMode describes the service that is only offered on one weekday
// at fixed start times.
type RestrictedMode struct {
	Weekday time.Weekday
	Window  Window
	Starts  []TimeOfDay
}

// DefaultRestrictedMode is the Monday БРТ schedule.
func DefaultRestrictedMode() RestrictedMode {
	return RestrictedMode{
		Weekday: time.Monday,
		Window:  Window{Open: MustTimeOfDay("13:00"), Close: MustTimeOfDay("17:30")},
		Starts: []TimeOfDay{
			MustTimeOfDay("13:00"),
			MustTimeOfDay("14:30"),
			MustTimeOfDay("16:00"),
			MustTimeOfDay("17:30"),
		},
	}
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of t's date.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
