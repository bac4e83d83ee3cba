package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shorlotik/Bot-Stomatologija/internal/access"
	"github.com/Shorlotik/Bot-Stomatologija/internal/admin"
	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

type fakeTelegram struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "dental_test_bot"}
}

// last returns the text of the most recent message or edit.
func (f *fakeTelegram) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			return m.Text
		case tgbotapi.EditMessageTextConfig:
			return m.Text
		}
	}
	return ""
}

func (f *fakeTelegram) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

const (
	adminID  = int64(1)
	clientID = int64(42)
)

type fixture struct {
	tg       *fakeTelegram
	db       *database.DB
	engine   *schedule.Engine
	bookings *booking.Service
	bot      *Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine := schedule.NewEngine(db, schedule.Config{Location: time.UTC}, logger)
	bookings := booking.NewService(db, engine, nil, nil, nil, logger)
	adm := admin.NewService(db, engine, bookings, nil, nil, logger)
	acc := access.NewService([]int64{adminID}, "secret", db, logger)

	tg := &fakeTelegram{}
	b, err := NewWithTelegramClient(tg, bookings, engine, adm, acc, Options{}, &logger)
	require.NoError(t, err)
	return &fixture{tg: tg, db: db, engine: engine, bookings: bookings, bot: b}
}

func (f *fixture) message(userID int64, text string) {
	f.bot.handleMessage(context.Background(), &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Test"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	})
}

func (f *fixture) callback(userID int64, data string) {
	f.bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	})
}

// nextTuesday returns a working Tuesday at least three days ahead.
func nextTuesday() time.Time {
	now := time.Now().UTC()
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3)
	for d.Weekday() != time.Tuesday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func serviceIndex(t *testing.T, name string) int {
	t.Helper()
	for i, s := range model.DefaultCatalog() {
		if s.Name == name {
			return i
		}
	}
	t.Fatalf("service %q not in catalog", name)
	return -1
}

func ptr(v int64) *int64 { return &v }

func TestCalendarKeyboard(t *testing.T) {
	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kb := CalendarKeyboard(month, map[string]bool{"2024-01-16": true}, false, true)

	rows := kb.InlineKeyboard
	assert.Equal(t, "Январь 2024", rows[0][1].Text)
	require.NotNil(t, rows[0][2].CallbackData)
	assert.Equal(t, "cal:2024-02", *rows[0][2].CallbackData)
	assert.Equal(t, cbNoop, *rows[0][0].CallbackData)

	// 1 January 2024 is a Monday.
	assert.Equal(t, "·", rows[2][0].Text)
	var found bool
	for _, row := range rows[2 : len(rows)-1] {
		assert.Len(t, row, 7)
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == "date:2024-01-16" {
				found = true
				assert.Equal(t, "16", btn.Text)
			}
		}
	}
	assert.True(t, found)

	last := rows[len(rows)-1]
	assert.Equal(t, "book:cancel", *last[len(last)-1].CallbackData)
}

func TestTimeSlotsKeyboard(t *testing.T) {
	day := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	var slots []time.Time
	for i := 0; i < 4; i++ {
		slots = append(slots, day.Add(13*time.Hour+time.Duration(i)*30*time.Minute))
	}
	kb := TimeSlotsKeyboard(slots)

	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 3)
	assert.Equal(t, "13:00", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "time:1330", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "time:1430", *kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "book:back_date", *kb.InlineKeyboard[2][0].CallbackData)
}

func TestPaginate(t *testing.T) {
	items := make([]pageItem, 10)
	for i := range items {
		items[i] = pageItem{Label: "item", Data: "x"}
	}

	kb, title := paginate(items, 0, "adm:orders:", "adm:main")
	assert.Equal(t, "Страница 1 из 2", title)
	require.Len(t, kb.InlineKeyboard, pageSize+2)
	nav := kb.InlineKeyboard[pageSize]
	require.Len(t, nav, 1)
	assert.Equal(t, "adm:orders:1", *nav[0].CallbackData)

	kb, title = paginate(items, 5, "adm:orders:", "")
	assert.Equal(t, "Страница 2 из 2", title)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "adm:orders:0", *kb.InlineKeyboard[2][0].CallbackData)

	_, title = paginate(nil, 0, "p:", "")
	assert.Equal(t, "Страница 1 из 1", title)
}

func TestParseWindowAndPeriod(t *testing.T) {
	w, err := parseWindow("09:00 – 15:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00 - 15:00", w.String())

	tests := []struct {
		in         string
		misaligned bool
	}{
		{"15:00-09:00", false},
		{"09:00", false},
		{"9-15", false},
		{"09:00x-15:00", false},
		{"09:15-12:00", true},
		{"13:00-17:45", true},
	}
	for _, tt := range tests {
		_, err := parseWindow(tt.in)
		require.Error(t, err, tt.in)
		assert.Equal(t, tt.misaligned, errors.Is(err, errMisaligned), tt.in)
	}

	from, to, err := parsePeriod("01.07.2025-14.07.2025", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), to)

	from, to, err = parsePeriod("05.07.2025", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, from, to)

	_, _, err = parsePeriod("14.07.2025-01.07.2025", time.UTC)
	assert.Error(t, err)
}

func TestClientBookingFlow(t *testing.T) {
	f := newFixture(t)
	day := nextTuesday()

	f.callback(clientID, "menu:dentistry")
	f.callback(clientID, "svc:"+strconv.Itoa(serviceIndex(t, "Консультация")))
	assert.Contains(t, f.tg.last(), "Консультация")

	f.callback(clientID, "date:"+day.Format(dateLayout))
	f.callback(clientID, "time:1300")
	assert.Contains(t, f.tg.last(), "13:00")

	f.message(clientID, "Иван")
	assert.Contains(t, f.tg.last(), "Некорректное ФИО")
	f.message(clientID, "Иванов Иван")
	f.message(clientID, "8 029 123 45 67")
	f.callback(clientID, "book:skip")
	assert.Contains(t, f.tg.last(), "+375291234567")

	f.callback(clientID, "book:confirm")
	assert.Contains(t, f.tg.last(), "Запись оформлена")

	list, err := f.bookings.MyBookings(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, day.Add(13*time.Hour), list[0].Start.UTC())
	assert.Equal(t, "Иванов Иван", list[0].FullName)

	// Returning clients may reuse their contacts.
	f.callback(clientID, "menu:dentistry")
	f.callback(clientID, "svc:"+strconv.Itoa(serviceIndex(t, "Консультация")))
	f.callback(clientID, "date:"+day.Format(dateLayout))
	f.callback(clientID, "time:1400")
	f.callback(clientID, "known:use")
	assert.Equal(t, booking.StateAskComment, f.bot.sessions.Get(clientID).GetState())
	f.callback(clientID, "book:skip")
	assert.Contains(t, f.tg.last(), "+375291234567")

	// One active booking per client.
	f.callback(clientID, "book:confirm")
	assert.Contains(t, f.tg.last(), "уже есть активная запись")

	list, err = f.bookings.MyBookings(context.Background(), clientID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClientCancelsOwnBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	b, err := f.bookings.Create(ctx, booking.Draft{
		OwnerID:  ptr(clientID),
		Service:  "Консультация",
		Start:    day.Add(15 * time.Hour),
		FullName: "Иванов Иван",
		Phone:    "+375291234567",
	})
	require.NoError(t, err)

	f.message(clientID, "/my")
	assert.Contains(t, f.tg.last(), "Ваши записи")

	f.callback(999, "my:ask:"+strconv.Itoa(int(b.ID)))
	assert.Contains(t, f.tg.last(), "не найдена")

	f.callback(clientID, "my:cancel:"+strconv.Itoa(int(b.ID)))
	assert.Contains(t, f.tg.last(), "Запись отменена")

	got, err := f.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
}

func TestSlotTakenDuringDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	f.callback(clientID, "menu:dentistry")
	f.callback(clientID, "svc:"+strconv.Itoa(serviceIndex(t, "Консультация")))
	f.callback(clientID, "date:"+day.Format(dateLayout))
	f.callback(clientID, "time:1300")
	f.message(clientID, "Иванов Иван")
	f.message(clientID, "+375291234567")
	f.callback(clientID, "book:skip")

	_, err := f.bookings.Create(ctx, booking.Draft{
		OwnerID:  ptr(7),
		Service:  "Консультация",
		Start:    day.Add(13 * time.Hour),
		FullName: "Петров Пётр",
		Phone:    "+375297654321",
	})
	require.NoError(t, err)

	f.callback(clientID, "book:confirm")
	sess := f.bot.sessions.Get(clientID)
	require.NotNil(t, sess)
	assert.Equal(t, booking.StateChooseTime, sess.GetState())

	list, err := f.bookings.MyBookings(ctx, clientID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderFlow(t *testing.T) {
	f := newFixture(t)

	f.callback(clientID, "menu:order")
	f.message(clientID, "Анна Смирнова")
	f.message(clientID, "+375291234567")
	f.message(clientID, "Омега-3, витамин D")
	f.callback(clientID, "order:skip")
	assert.Contains(t, f.tg.last(), "Омега-3")
	f.callback(clientID, "order:confirm")
	assert.Contains(t, f.tg.last(), "принят")

	orders, err := f.db.PendingOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Омега-3, витамин D", orders[0].Products)
}

func TestAdminAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.callback(clientID, "adm:today")
	assert.Contains(t, f.tg.last(), "только администратору")

	f.message(clientID, "/admin")
	assert.Equal(t, booking.StateAdminPassword, f.bot.sessions.Get(clientID).GetState())
	f.message(clientID, "wrong")
	assert.Contains(t, f.tg.last(), "Неверный пароль")

	f.message(clientID, "/admin")
	f.message(clientID, "secret")
	assert.Contains(t, f.tg.last(), "Панель врача")
	ok, err := f.db.IsManager(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, ok)

	f.message(clientID, "/logout")
	ok, err = f.db.IsManager(ctx, clientID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.message(adminID, "/admin")
	assert.Contains(t, f.tg.last(), "Панель врача")
}

func TestAdminCancelsAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	b, err := f.bookings.Create(ctx, booking.Draft{
		OwnerID:  ptr(clientID),
		Service:  "Консультация",
		Start:    day.Add(14 * time.Hour),
		FullName: "Иванов Иван",
		Phone:    "+375291234567",
	})
	require.NoError(t, err)

	f.callback(adminID, "adm:day:"+day.Format(dateLayout)+":0")
	assert.Contains(t, f.tg.last(), "Всего: 1")

	f.callback(adminID, "adm:appt:"+strconv.Itoa(int(b.ID)))
	assert.Contains(t, f.tg.last(), "+375291234567")

	f.callback(adminID, "adm:cancelok:"+strconv.Itoa(int(b.ID)))
	got, err := f.bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Contains(t, f.tg.last(), "отменена")
}

func TestAdminChangesHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	late, err := f.bookings.Create(ctx, booking.Draft{
		OwnerID:  ptr(clientID),
		Service:  "Консультация",
		Start:    day.Add(18 * time.Hour),
		FullName: "Иванов Иван",
		Phone:    "+375291234567",
	})
	require.NoError(t, err)

	f.callback(adminID, "adm:wd:2")
	f.message(adminID, "13:00-17:00")
	assert.Contains(t, f.tg.last(), "Будут отменены записи (1)")
	assert.Equal(t, booking.StateAdminHoursConfirm, f.bot.sessions.Get(adminID).GetState())

	f.callback(adminID, "adm:hours_ok")
	assert.Contains(t, f.tg.last(), "Отменено записей: 1")

	got, err := f.bookings.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	w, ok, err := f.engine.ResolveSchedule(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "13:00 - 17:00", w.String())
}

func TestAdminRejectsMisalignedHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	f.callback(adminID, "adm:wd:2")
	f.message(adminID, "09:15-12:00")
	assert.Contains(t, f.tg.last(), "кратно 30 минутам")
	assert.Equal(t, booking.StateAdminHours, f.bot.sessions.Get(adminID).GetState())

	w, ok, err := f.engine.ResolveSchedule(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "13:00 - 19:00", w.String())
}

func TestAdminDoctorBookingAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := nextTuesday()

	f.callback(adminID, "adm:book")
	f.callback(adminID, "svc:"+strconv.Itoa(serviceIndex(t, "Имплантация")))
	f.callback(adminID, "date:"+day.Format(dateLayout))
	f.callback(adminID, "time:1500")
	f.message(adminID, "Сидоров Олег")
	f.message(adminID, "+375331112233")
	f.callback(adminID, "book:skip")
	f.callback(adminID, "book:confirm")
	assert.Contains(t, f.tg.last(), "Запись создана")

	list, err := f.db.ActiveBookingsBetween(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].CreatedByDoctor)
	assert.Nil(t, list[0].OwnerID)

	f.callback(adminID, "adm:export")
	f.message(adminID, day.Format("02.01.2006"))
	docs := f.tg.documents()
	require.Len(t, docs, 1)
	assert.True(t, strings.HasSuffix(docs[0].File.(tgbotapi.FileBytes).Name, ".xlsx"))
}
