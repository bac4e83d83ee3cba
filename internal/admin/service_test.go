package admin

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

type dbCanceller struct {
	db      *database.DB
	reasons []string
}

func (c *dbCanceller) CancelMany(ctx context.Context, bookings []model.Booking, reason string) int {
	n := 0
	for _, b := range bookings {
		if err := c.db.UpdateBookingStatus(ctx, b.ID, model.BookingCancelled); err == nil {
			c.reasons = append(c.reasons, reason)
			n++
		}
	}
	return n
}

type recordingBus struct {
	mu       sync.Mutex
	payloads []events.ScheduleChangedPayload
}

func (b *recordingBus) PublishJSON(_ context.Context, eventType string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := payload.(events.ScheduleChangedPayload); ok && eventType == events.ScheduleChanged {
		b.payloads = append(b.payloads, p)
	}
	return nil
}

type countingCache struct{ calls int }

func (c *countingCache) InvalidateAll(context.Context) error {
	c.calls++
	return nil
}

type fixture struct {
	db     *database.DB
	engine *schedule.Engine
	cancel *dbCanceller
	bus    *recordingBus
	cache  *countingCache
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "admin.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:     db,
		engine: schedule.NewEngine(db, schedule.Config{Location: time.UTC}, logger),
		cancel: &dbCanceller{db: db},
		bus:    &recordingBus{},
		cache:  &countingCache{},
	}
	f.svc = NewService(db, f.engine, f.cancel, f.bus, f.cache, logger)
	return f
}

// nextWeekday returns a date at least a week ahead that falls on d.
func nextWeekday(d time.Weekday) time.Time {
	day := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 7)
	for day.Weekday() != d {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func (f *fixture) book(t *testing.T, start time.Time, name string) model.Booking {
	t.Helper()
	b := &model.Booking{
		FullName:        name,
		Phone:           "+375291234567",
		Start:           start,
		DurationMinutes: 30,
		Service:         "Консультация",
		Status:          model.BookingActive,
	}
	require.NoError(t, f.db.CreateBooking(context.Background(), b))
	return *b
}

func TestScheduleChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tue := nextWeekday(time.Tuesday)
	inside := f.book(t, tue.Add(14*time.Hour), "Иванов Иван")
	outside := f.book(t, tue.Add(18*time.Hour), "Петров Пётр")

	w := model.Window{Open: model.MustTimeOfDay("13:00"), Close: model.MustTimeOfDay("17:00")}
	preview, err := f.svc.PreviewScheduleChange(ctx, time.Tuesday, w)
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Equal(t, outside.ID, preview[0].ID)

	res, err := f.svc.ApplyScheduleChange(ctx, time.Tuesday, w)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Contains(t, res.Summary, "вторник")
	assert.Equal(t, []string{ScheduleChangeReason}, f.cancel.reasons)

	got, err := f.db.GetBooking(ctx, inside.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	got, err = f.db.GetBooking(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	resolved, ok, err := f.engine.ResolveSchedule(ctx, tue)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w, resolved)

	require.Len(t, f.bus.payloads, 1)
	assert.Equal(t, "hours", f.bus.payloads[0].Kind)
	assert.Equal(t, 1, f.bus.payloads[0].Cancelled)
	assert.Equal(t, 1, f.cache.calls)
}

func TestScheduleChangeInvalidWindow(t *testing.T) {
	tests := []struct {
		name        string
		open, close string
	}{
		{"inverted", "17:00", "13:00"},
		{"unaligned open", "09:15", "13:00"},
		{"unaligned close", "13:00", "17:45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			w := model.Window{Open: model.MustTimeOfDay(tt.open), Close: model.MustTimeOfDay(tt.close)}
			_, err := f.svc.ApplyScheduleChange(ctx, time.Tuesday, w)
			assert.ErrorIs(t, err, schedule.ErrInvalidInput)
			assert.Empty(t, f.bus.payloads)

			resolved, ok, err := f.engine.ResolveSchedule(ctx, nextWeekday(time.Tuesday))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "13:00 - 19:00", resolved.String())
		})
	}
}

func TestScheduleChangeCancelsBookingsMadeAfterPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tue := nextWeekday(time.Tuesday)

	w := model.Window{Open: model.MustTimeOfDay("13:00"), Close: model.MustTimeOfDay("17:00")}
	preview, err := f.svc.PreviewScheduleChange(ctx, time.Tuesday, w)
	require.NoError(t, err)
	assert.Empty(t, preview)

	late := f.book(t, tue.Add(18*time.Hour), "Петров Пётр")

	res, err := f.svc.ApplyScheduleChange(ctx, time.Tuesday, w)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)

	got, err := f.db.GetBooking(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
}

func TestAbsenceCancelsBookingsMadeAfterPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wed := nextWeekday(time.Wednesday)

	preview, err := f.svc.PreviewAbsence(ctx, wed, wed)
	require.NoError(t, err)
	assert.Empty(t, preview)

	b := f.book(t, wed.Add(15*time.Hour), "Иванов Иван")

	res, err := f.svc.ApplyAbsence(ctx, model.AbsenceVacation, wed, wed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)

	got, err := f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	_, err = f.svc.ApplyAbsence(ctx, model.AbsenceVacation, wed, wed.AddDate(0, 0, -2))
	assert.ErrorIs(t, err, schedule.ErrInvalidInput)
}

func TestAbsence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	wed := nextWeekday(time.Wednesday)
	during := f.book(t, wed.Add(15*time.Hour), "Иванов Иван")
	after := f.book(t, wed.AddDate(0, 0, 2).Add(15*time.Hour), "Петров Пётр")

	// Times of day are dropped: the absence covers whole days.
	preview, err := f.svc.PreviewAbsence(ctx, wed.Add(20*time.Hour), wed.AddDate(0, 0, 1).Add(9*time.Hour))
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Equal(t, during.ID, preview[0].ID)

	res, err := f.svc.ApplyAbsence(ctx, model.AbsenceSickLeave, wed, wed.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, []string{"Больничный врача"}, f.cancel.reasons)

	got, err := f.db.GetBooking(ctx, after.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())

	absences, err := f.svc.Absences(ctx)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, model.AbsenceSickLeave, absences[0].Kind)

	ok, err := f.engine.IsDateAvailable(ctx, wed)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, f.bus.payloads, 1)
	assert.Equal(t, "absence", f.bus.payloads[0].Kind)
}

func TestHolidays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	thu := nextWeekday(time.Thursday)
	existing := f.book(t, thu.Add(15*time.Hour), "Иванов Иван")

	warn, err := f.svc.AddHoliday(ctx, thu, "Санитарный день")
	require.NoError(t, err)
	require.Len(t, warn, 1)
	assert.Equal(t, existing.ID, warn[0].ID)

	got, err := f.db.GetBooking(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive(), "holidays never cancel bookings")

	holidays, err := f.svc.Holidays(ctx)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Санитарный день", holidays[0].Description)

	require.NoError(t, f.svc.RemoveHoliday(ctx, thu))
	holidays, err = f.svc.Holidays(ctx)
	require.NoError(t, err)
	assert.Empty(t, holidays)
	assert.Equal(t, 2, f.cache.calls)
}

func TestAppointmentsAndOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fri := nextWeekday(time.Friday)
	f.book(t, fri.Add(16*time.Hour), "Петров Пётр")
	f.book(t, fri.Add(10*time.Hour), "Иванов Иван")
	f.book(t, fri.AddDate(0, 0, 1).Add(10*time.Hour), "Сидоров Сидор")

	list, err := f.svc.Appointments(ctx, fri.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Иванов Иван", list[0].FullName)

	o := &model.Order{FullName: "Иванов Иван", Phone: "+375291234567", Products: "Омега-3"}
	require.NoError(t, f.db.CreateOrder(ctx, o))

	pending, err := f.svc.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, f.svc.ProcessOrder(ctx, o.ID))
	pending, err = f.svc.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fri := nextWeekday(time.Friday)
	f.book(t, fri.Add(10*time.Hour), "Иванов Иван")
	f.book(t, fri.AddDate(0, 1, 0).Add(10*time.Hour), "Вне периода")

	data, name, err := f.svc.Export(ctx, fri, fri.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Contains(t, name, ".xlsx")

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Записи")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestCurrentSchedule(t *testing.T) {
	f := newFixture(t)
	hours, err := f.svc.CurrentSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultWeeklyTemplate(), hours.Template)
	assert.Equal(t, time.Monday, hours.Restricted.Weekday)
	assert.NotEmpty(t, hours.Effective)
}
