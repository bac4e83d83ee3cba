// Package bot implements the Telegram interface of the clinic.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/admin"
	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/config"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bookings is the client-facing booking service.
type Bookings interface {
	Create(ctx context.Context, d booking.Draft) (*model.Booking, error)
	Cancel(ctx context.Context, id int64, reason string, byOwner *int64) (*model.Booking, error)
	Complete(ctx context.Context, id int64) (*model.Booking, error)
	Reschedule(ctx context.Context, id int64, start time.Time) (*model.Booking, error)
	Get(ctx context.Context, id int64) (*model.Booking, error)
	MyBookings(ctx context.Context, ownerID int64) ([]model.Booking, error)
	KnownUser(ctx context.Context, telegramID int64) (*model.User, error)
	CreateOrder(ctx context.Context, d booking.OrderDraft) (*model.Order, error)
	Catalog() model.Catalog
}

// Slots answers calendar and time picker questions.
type Slots interface {
	IsDateAvailableFor(ctx context.Context, date time.Time, restricted bool) (bool, error)
	ComputeAvailableSlots(ctx context.Context, date time.Time, durationMinutes int, restricted bool) ([]time.Time, error)
	Now() time.Time
	Day(date time.Time) time.Time
	Location() *time.Location
}

// Admin is the doctor's management service.
type Admin interface {
	Appointments(ctx context.Context, date time.Time) ([]model.Booking, error)
	CurrentSchedule(ctx context.Context) (admin.WorkingHours, error)
	PreviewScheduleChange(ctx context.Context, weekday time.Weekday, w model.Window) ([]model.Booking, error)
	ApplyScheduleChange(ctx context.Context, weekday time.Weekday, w model.Window) (admin.Result, error)
	PreviewAbsence(ctx context.Context, start, end time.Time) ([]model.Booking, error)
	ApplyAbsence(ctx context.Context, kind model.AbsenceKind, start, end time.Time) (admin.Result, error)
	Absences(ctx context.Context) ([]model.AbsencePeriod, error)
	AddHoliday(ctx context.Context, date time.Time, description string) ([]model.Booking, error)
	RemoveHoliday(ctx context.Context, date time.Time) error
	Holidays(ctx context.Context) ([]model.BlockedDate, error)
	PendingOrders(ctx context.Context) ([]model.Order, error)
	ProcessOrder(ctx context.Context, id int64) error
	Export(ctx context.Context, from, to time.Time) ([]byte, string, error)
}

// Access decides who may open the admin panel.
type Access interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	PasswordEnabled() bool
	Login(ctx context.Context, userID, chatID int64, name, password string) error
	Logout(ctx context.Context, userID int64) error
	AdminMiddleware(ctx context.Context, userID int64) error
}

// Options tune the dialogs.
type Options struct {
	MaxAdvance     time.Duration
	SessionTimeout time.Duration
	Clinic         config.ClinicConfig
}

// Bot routes Telegram updates to the booking and admin dialogs.
type Bot struct {
	tg       telegramClient
	bookings Bookings
	slots    Slots
	admin    Admin
	access   Access
	sessions *booking.SessionStore
	fsm      *booking.FSM
	opts     Options
	logger   *zerolog.Logger
}

// New wraps an authorized Telegram API. The notifier shares the same client.
func New(api *tgbotapi.BotAPI, bookings Bookings, slots Slots, adm Admin, access Access, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram api is nil")
	}
	return NewWithTelegramClient(&realTelegramClient{api: api}, bookings, slots, adm, access, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, bookings Bookings, slots Slots, adm Admin, access Access, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if opts.MaxAdvance <= 0 {
		opts.MaxAdvance = 60 * 24 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bot{
		tg:       tg,
		bookings: bookings,
		slots:    slots,
		admin:    adm,
		access:   access,
		sessions: booking.NewSessionStore(opts.SessionTimeout),
		fsm:      booking.NewFSM(),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if n := b.sessions.Cleanup(); n > 0 {
				b.logger.Debug().Int("removed", n).Msg("expired sessions removed")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("update handler panicked")
		}
	}()

	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID, userID := msg.Chat.ID, msg.From.ID

	// Commands interrupt any active dialog.
	switch {
	case strings.HasPrefix(text, "/start"):
		b.sessions.Reset(userID)
		b.sendMainMenu(chatID, 0)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.sessions.Reset(userID)
		b.reply(chatID, "Операция отменена.")
		b.sendMainMenu(chatID, 0)
		return
	case strings.HasPrefix(text, "/my"):
		b.sessions.Reset(userID)
		b.showMyBookings(ctx, chatID, userID, 0)
		return
	case strings.HasPrefix(text, "/help"):
		b.reply(chatID, helpText)
		return
	case strings.HasPrefix(text, "/admin"):
		b.sessions.Reset(userID)
		b.openAdmin(ctx, chatID, msg.From)
		return
	case strings.HasPrefix(text, "/logout"):
		b.logout(ctx, chatID, userID)
		return
	}

	sess := b.sessions.Get(userID)
	if sess == nil || sess.GetState() == booking.StateIdle {
		b.sendMainMenu(chatID, 0)
		return
	}

	switch sess.GetState() {
	case booking.StateAskName, booking.StateAskPhone, booking.StateAskComment:
		b.handleBookingInput(ctx, chatID, sess, text)
	case booking.StateOrderName, booking.StateOrderPhone, booking.StateOrderProducts, booking.StateOrderComment:
		b.handleOrderInput(ctx, chatID, sess, text)
	case booking.StateAdminPassword:
		b.handleAdminPassword(ctx, chatID, msg.From, sess, text)
	case booking.StateAdminDate, booking.StateAdminHours, booking.StateAdminAbsence,
		booking.StateAdminHoliday, booking.StateAdminReschedule, booking.StateAdminExport:
		b.handleAdminInput(ctx, chatID, userID, sess, text)
	default:
		b.reply(chatID, "Пожалуйста, воспользуйтесь кнопками выше или отправьте /cancel.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))

	data := cq.Data
	if data == cbNoop {
		return
	}
	chatID, msgID, userID := cq.Message.Chat.ID, cq.Message.MessageID, cq.From.ID

	prefix, arg, _ := strings.Cut(data, ":")
	switch prefix {
	case "menu":
		b.handleMenu(ctx, chatID, msgID, cq.From, arg)
	case "svc", "cal", "date", "time", "book", "known":
		b.handleBookingCallback(ctx, chatID, msgID, userID, prefix, arg)
	case "my":
		b.handleMyCallback(ctx, chatID, msgID, userID, arg)
	case "order":
		b.handleOrderCallback(ctx, chatID, userID, arg)
	case "adm":
		if !b.requireAdmin(ctx, chatID, userID) {
			return
		}
		b.handleAdminCallback(ctx, chatID, msgID, userID, arg)
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("unknown callback")
	}
}

func (b *Bot) handleMenu(ctx context.Context, chatID int64, msgID int, from *tgbotapi.User, arg string) {
	switch arg {
	case "main":
		b.sessions.Reset(from.ID)
		b.sendMainMenu(chatID, msgID)
	case "dentistry":
		b.startBooking(ctx, chatID, msgID, from.ID, model.CategoryDentistry, false)
	case "nutrition":
		b.startBooking(ctx, chatID, msgID, from.ID, model.CategoryNutrition, false)
	case "my":
		b.showMyBookings(ctx, chatID, from.ID, msgID)
	case "order":
		b.startOrder(ctx, chatID, from.ID)
	case "contacts":
		b.edit(chatID, msgID, b.contactsText(), backToMainKeyboard())
	}
}

func (b *Bot) sendMainMenu(chatID int64, msgID int) {
	b.edit(chatID, msgID, welcomeText, mainMenuKeyboard())
}

// send delivers c, retrying once without Markdown when Telegram rejects the markup.
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if m.ParseMode != "" {
				m.ParseMode = ""
				if _, err = b.tg.Send(m); err == nil {
					return
				}
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ParseMode != "" {
				m.ParseMode = ""
				if _, err = b.tg.Send(m); err == nil {
					return
				}
			}
		}
		b.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMarkdown(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}

// edit replaces message msgID, or sends a new message when msgID is zero.
func (b *Bot) edit(chatID int64, msgID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if msgID == 0 {
		if markup != nil {
			b.sendMarkdown(chatID, text, *markup)
		} else {
			b.sendMarkdown(chatID, text, nil)
		}
		return
	}
	var m tgbotapi.EditMessageTextConfig
	if markup != nil {
		m = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, *markup)
	} else {
		m = tgbotapi.NewEditMessageText(chatID, msgID, text)
	}
	m.ParseMode = tgbotapi.ModeMarkdown
	b.send(m)
}

// prompt moves sess to state and asks the matching question.
func (b *Bot) prompt(chatID int64, sess *booking.Session, state booking.State, markup *tgbotapi.InlineKeyboardMarkup) bool {
	if !b.fsm.Transition(sess, state) {
		b.logger.Warn().
			Str("from", string(sess.GetState())).
			Str("to", string(state)).
			Int64("user_id", sess.UserID).
			Msg("invalid dialog transition")
		b.reply(chatID, "Сценарий устарел, начните заново: /start")
		return false
	}
	if markup != nil {
		b.sendMarkdown(chatID, booking.StatePrompts[state], *markup)
	} else {
		b.sendMarkdown(chatID, booking.StatePrompts[state], nil)
	}
	return true
}
