package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shorlotik/Bot-Stomatologija/internal/config"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

var tuesday = time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr(v int64) *int64 { return &v }

func at(day time.Time, hh, mm int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, time.UTC)
}

func newBooking(owner *int64, start time.Time, duration int) *model.Booking {
	return &model.Booking{
		OwnerID:         owner,
		FullName:        "Иван Петров",
		Phone:           "+375291234567",
		Start:           start,
		DurationMinutes: duration,
		Service:         "Консультация",
	}
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	b := newBooking(ptr(100), at(tuesday, 14, 0), 60)
	b.Comment = "болит зуб"
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NotZero(t, b.ID)
	assert.Equal(t, model.BookingActive, b.Status)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(b.Start))
	assert.Equal(t, 60, got.DurationMinutes)
	assert.Equal(t, "болит зуб", got.Comment)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, int64(100), *got.OwnerID)
	assert.False(t, got.CreatedByDoctor)

	doctor := newBooking(nil, at(tuesday, 16, 0), 30)
	doctor.CreatedByDoctor = true
	require.NoError(t, db.CreateBooking(ctx, doctor))

	got, err = db.GetBooking(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OwnerID)
	assert.True(t, got.CreatedByDoctor)

	_, err = db.GetBooking(ctx, 9999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCreateBooking_OverlapRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.CreateBooking(ctx, newBooking(ptr(1), at(tuesday, 14, 0), 90)))

	tests := []struct {
		name     string
		start    time.Time
		duration int
		wantErr  bool
	}{
		{"same start", at(tuesday, 14, 0), 30, true},
		{"inside", at(tuesday, 15, 0), 30, true},
		{"covers tail", at(tuesday, 13, 30), 60, true},
		{"adjacent after", at(tuesday, 15, 30), 60, false},
		{"adjacent before", at(tuesday, 13, 0), 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateBooking(ctx, newBooking(ptr(2), tt.start, tt.duration))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSlotTaken)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	all, err := db.ActiveBookingsBetween(ctx, tuesday, at(tuesday, 23, 59))
	require.NoError(t, err)
	assert.Len(t, all, 3, "rejected inserts must roll back")
}

func TestBookingQueries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	wednesday := tuesday.AddDate(0, 0, 1)

	b1 := newBooking(ptr(7), at(tuesday, 13, 0), 30)
	b2 := newBooking(ptr(7), at(wednesday, 14, 0), 60)
	b3 := newBooking(ptr(8), at(tuesday, 18, 0), 60)
	for _, b := range []*model.Booking{b1, b2, b3} {
		require.NoError(t, db.CreateBooking(ctx, b))
	}
	require.NoError(t, db.UpdateBookingStatus(ctx, b3.ID, model.BookingCancelled))

	active, err := db.ActiveBookingsBetween(ctx, tuesday, at(tuesday, 23, 59))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b1.ID, active[0].ID)

	all, err := db.BookingsBetween(ctx, tuesday, at(tuesday, 23, 59))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	since, err := db.ActiveBookingsSince(ctx, at(tuesday, 14, 0))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, b2.ID, since[0].ID)

	mine, err := db.ActiveBookingsByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	n, err := db.CountActiveBookingsByOwner(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateBookingStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	b := newBooking(ptr(1), at(tuesday, 14, 0), 60)
	require.NoError(t, db.CreateBooking(ctx, b))

	require.NoError(t, db.UpdateBookingStatus(ctx, b.ID, model.BookingCancelled))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	err = db.UpdateBookingStatus(ctx, b.ID, model.BookingCompleted)
	assert.ErrorIs(t, err, ErrAlreadyFinal)

	err = db.UpdateBookingStatus(ctx, 404, model.BookingCancelled)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	assert.Error(t, db.UpdateBookingStatus(ctx, b.ID, model.BookingActive))

	// released quanta can be booked again
	assert.NoError(t, db.CreateBooking(ctx, newBooking(ptr(2), at(tuesday, 14, 30), 30)))
}

func TestRescheduleBooking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	b := newBooking(ptr(1), at(tuesday, 14, 0), 60)
	other := newBooking(ptr(2), at(tuesday, 17, 0), 60)
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NoError(t, db.CreateBooking(ctx, other))

	t.Run("overlapping own slot", func(t *testing.T) {
		require.NoError(t, db.RescheduleBooking(ctx, b.ID, at(tuesday, 14, 30)))
		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.Start.Equal(at(tuesday, 14, 30)))
	})

	t.Run("into another booking", func(t *testing.T) {
		err := db.RescheduleBooking(ctx, b.ID, at(tuesday, 16, 30))
		assert.ErrorIs(t, err, ErrSlotTaken)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.Start.Equal(at(tuesday, 14, 30)), "failed move keeps the old time")
	})

	t.Run("old quanta released", func(t *testing.T) {
		assert.NoError(t, db.CreateBooking(ctx, newBooking(ptr(3), at(tuesday, 14, 0), 30)))
	})

	t.Run("reminder reset on move", func(t *testing.T) {
		require.NoError(t, db.MarkReminderSent(ctx, b.ID))

		assert.ErrorIs(t, db.RescheduleBooking(ctx, b.ID, at(tuesday, 17, 0)), ErrSlotTaken)
		sent, err := db.IsReminderSent(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, sent, "failed move keeps the reminder record")

		require.NoError(t, db.RescheduleBooking(ctx, b.ID, at(tuesday, 15, 0)))
		sent, err = db.IsReminderSent(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, sent)
	})

	t.Run("final booking", func(t *testing.T) {
		require.NoError(t, db.UpdateBookingStatus(ctx, other.ID, model.BookingCompleted))
		err := db.RescheduleBooking(ctx, other.ID, at(tuesday, 18, 0))
		assert.ErrorIs(t, err, ErrAlreadyFinal)
	})
}

func TestSetCalendarEventID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	b := newBooking(ptr(1), at(tuesday, 14, 0), 60)
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NoError(t, db.SetCalendarEventID(ctx, b.ID, "evt-1"))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.CalendarEventID)

	assert.ErrorIs(t, db.SetCalendarEventID(ctx, 404, "x"), ErrBookingNotFound)
}

func TestEnsureQuantaRebuild(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rebuild.db")
	logger := zerolog.Nop()

	db, err := NewDB(path, time.UTC, &logger)
	require.NoError(t, err)
	b := newBooking(ptr(1), at(tuesday, 14, 0), 60)
	require.NoError(t, db.CreateBooking(ctx, b))
	_, err = db.ExecContext(ctx, `DELETE FROM booking_quanta`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path, time.UTC, &logger)
	require.NoError(t, err)
	defer db.Close()

	err = db.CreateBooking(ctx, newBooking(ptr(2), at(tuesday, 14, 30), 30))
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first := &model.ScheduleOverride{
		Weekday:       time.Tuesday,
		Window:        model.Window{Open: model.MustTimeOfDay("10:00"), Close: model.MustTimeOfDay("14:00")},
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   &to,
	}
	second := &model.ScheduleOverride{
		Weekday:       time.Tuesday,
		Window:        model.Window{Open: model.MustTimeOfDay("15:00"), Close: model.MustTimeOfDay("17:00")},
		EffectiveFrom: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	friday := &model.ScheduleOverride{
		Weekday:       time.Friday,
		Window:        model.Window{Open: model.MustTimeOfDay("09:00"), Close: model.MustTimeOfDay("12:00")},
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, o := range []*model.ScheduleOverride{first, second, friday} {
		require.NoError(t, db.CreateOverride(ctx, o))
	}

	got, err := db.OverridesForWeekday(ctx, time.Tuesday)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest effective_from first")
	assert.Equal(t, "15:00 - 17:00", got[0].Window.String())
	assert.Nil(t, got[0].EffectiveTo)
	require.NotNil(t, got[1].EffectiveTo)
	assert.True(t, got[1].EffectiveTo.Equal(to))

	all, err := db.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.EndOverride(ctx, second.ID, end))
	got, err = db.OverridesForWeekday(ctx, time.Tuesday)
	require.NoError(t, err)
	require.NotNil(t, got[0].EffectiveTo)
	assert.True(t, got[0].EffectiveTo.Equal(end))

	assert.ErrorIs(t, db.EndOverride(ctx, 404, end), ErrOverrideNotFound)

	bad := &model.ScheduleOverride{Weekday: time.Monday, Window: model.Window{Open: 600, Close: 500}}
	assert.Error(t, db.CreateOverride(ctx, bad))
}

func TestAbsences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	vac := &model.AbsencePeriod{
		Kind:  model.AbsenceVacation,
		Start: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 25, 23, 59, 59, 0, time.UTC),
	}
	require.NoError(t, db.CreateAbsence(ctx, vac))
	assert.NotZero(t, vac.ID)

	got, err := db.AbsencesOverlapping(ctx, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.AbsenceVacation, got[0].Kind)

	got, err = db.AbsencesOverlapping(ctx, time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 27, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)

	upcoming, err := db.UpcomingAbsences(ctx, tuesday)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	assert.Error(t, db.CreateAbsence(ctx, &model.AbsencePeriod{Kind: "holiday", Start: tuesday, End: tuesday}))
	assert.Error(t, db.CreateAbsence(ctx, &model.AbsencePeriod{Kind: model.AbsenceSickLeave, Start: tuesday, End: tuesday.Add(-time.Hour)}))
}

func TestBlockedDates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	newYear := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.BlockDate(ctx, newYear, "Новый год"))
	require.NoError(t, db.BlockDate(ctx, newYear, "Новый год!"))

	blocked, err := db.IsBlockedDate(ctx, newYear.Add(15*time.Hour))
	require.NoError(t, err)
	assert.True(t, blocked)

	dates, err := db.BlockedDatesFrom(ctx, newYear)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "Новый год!", dates[0].Description)

	applied := db.SyncHolidays(ctx, []model.BlockedDate{
		{Date: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), Description: "Рождество"},
		{Date: newYear, Description: "Новый год"},
	})
	assert.Equal(t, 2, applied)

	require.NoError(t, db.UnblockDate(ctx, newYear))
	blocked, err = db.IsBlockedDate(ctx, newYear)
	require.NoError(t, err)
	assert.False(t, blocked)
	require.NoError(t, db.UnblockDate(ctx, newYear))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	u, err := db.GetUser(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, db.UpsertUser(ctx, &model.User{TelegramID: 5, FullName: "Анна Смирнова", Phone: "+375291111111"}))
	require.NoError(t, db.UpsertUser(ctx, &model.User{TelegramID: 5, FullName: "Анна Смирнова", Phone: "+375292222222"}))

	u, err = db.GetUser(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "+375292222222", u.Phone)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	o := &model.Order{OwnerID: ptr(3), FullName: "Анна Смирнова", Phone: "+375291111111", Products: "Витамин D"}
	require.NoError(t, db.CreateOrder(ctx, o))
	assert.Equal(t, model.OrderPending, o.Status)

	pending, err := db.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Витамин D", pending[0].Products)

	require.NoError(t, db.MarkOrderProcessed(ctx, o.ID))
	pending, err = db.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := db.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.OrderProcessed, all[0].Status)

	assert.ErrorIs(t, db.MarkOrderProcessed(ctx, 404), ErrOrderNotFound)
	assert.True(t, IsNotFound(db.MarkOrderProcessed(ctx, 404)))
}

func TestReminders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	sent, err := db.IsReminderSent(ctx, 1)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, db.MarkReminderSent(ctx, 1))
	require.NoError(t, db.MarkReminderSent(ctx, 1))

	sent, err = db.IsReminderSent(ctx, 1)
	require.NoError(t, err)
	assert.True(t, sent)

	n, err := db.CleanupReminders(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.CleanupReminders(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestManagers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	ok, err := db.IsManager(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddManager(ctx, 10, 1010, "Доктор"))
	ok, err = db.IsManager(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	chats, err := db.ManagerChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1010}, chats)

	list, err := db.ListManagers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Доктор", list[0].Name)

	require.NoError(t, db.RemoveManager(ctx, 10))
	ok, err = db.IsManager(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackupService(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.CreateBooking(ctx, newBooking(ptr(1), at(tuesday, 14, 0), 60)))

	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Schedule: "0 3 * * *", Path: dir, RetentionDays: 7}, &logger)
	svc.now = func() time.Time { return time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC) }

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20240116_030000.db"), path)

	restored, err := NewDB(path, time.UTC, &logger)
	require.NoError(t, err)
	defer restored.Close()
	bookings, err := restored.ActiveBookingsBetween(ctx, tuesday, at(tuesday, 23, 59))
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	stale := filepath.Join(dir, "backup_20231201_030000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
	old := time.Date(2023, 12, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "notes.txt"), old, old))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestBackupService_InvalidSchedule(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.Nop()

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Schedule: "every day"}, &logger)
	assert.Error(t, svc.Start(context.Background()))

	disabled := NewBackupService(db, config.BackupConfig{}, &logger)
	assert.NoError(t, disabled.Start(context.Background()))
}
