// Package notify delivers Telegram messages to clients and the doctor.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
)

// ErrUserBlocked is returned when the recipient has blocked the bot.
var ErrUserBlocked = errors.New("user blocked the bot")

// Messenger is the part of the Telegram API used for delivery.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminDirectory lists chats that receive doctor notifications besides
// the configured admin IDs.
type AdminDirectory interface {
	ManagerChatIDs(ctx context.Context) ([]int64, error)
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Config tunes delivery.
type Config struct {
	// Rate is messages per second across all chats.
	Rate  float64
	Burst int
	Retry RetryConfig
}

// DefaultConfig keeps below Telegram's global limit of 30 messages per second.
func DefaultConfig() Config {
	return Config{Rate: 20, Burst: 30, Retry: DefaultRetryConfig()}
}

// Notifier sends messages with rate limiting and retries.
type Notifier struct {
	api       Messenger
	limiter   *rate.Limiter
	retry     RetryConfig
	adminIDs  []int64
	directory AdminDirectory
	logger    zerolog.Logger
}

func NewNotifier(api Messenger, cfg Config, adminIDs []int64, directory AdminDirectory, logger zerolog.Logger) *Notifier {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultConfig().Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Notifier{
		api:       api,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		retry:     cfg.Retry,
		adminIDs:  adminIDs,
		directory: directory,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Send delivers a Markdown message to chatID. kind labels the metric.
func (n *Notifier) Send(ctx context.Context, chatID int64, text, kind string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	err := n.sendWithRetry(ctx, msg)
	if err != nil && isBadRequest(err) {
		// User-supplied text may break Markdown; fall back to plain text.
		msg.ParseMode = ""
		err = n.sendWithRetry(ctx, msg)
	}

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrUserBlocked) {
			status = "blocked"
		}
	}
	metrics.IncNotification(kind, status)
	return err
}

func (n *Notifier) sendWithRetry(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		_, err := n.api.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		var wait time.Duration
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case http.StatusTooManyRequests:
				wait = time.Duration(tgErr.RetryAfter) * time.Second
			case http.StatusForbidden:
				n.logger.Info().Int64("chat_id", msg.ChatID).Msg("user blocked bot")
				return fmt.Errorf("%w: %v", ErrUserBlocked, err)
			case http.StatusBadRequest:
				return err
			}
		}

		if attempt == n.retry.MaxRetries {
			break
		}
		if wait == 0 && attempt < len(n.retry.RetryDelays) {
			wait = n.retry.RetryDelays[attempt]
		}
		n.logger.Debug().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying telegram send")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isBadRequest(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == http.StatusBadRequest
}

// AdminChats returns configured admin IDs merged with logged-in managers.
func (n *Notifier) AdminChats(ctx context.Context) []int64 {
	seen := make(map[int64]struct{}, len(n.adminIDs))
	out := make([]int64, 0, len(n.adminIDs))
	add := func(id int64) {
		if _, ok := seen[id]; ok || id == 0 {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range n.adminIDs {
		add(id)
	}
	if n.directory != nil {
		ids, err := n.directory.ManagerChatIDs(ctx)
		if err != nil {
			n.logger.Warn().Err(err).Msg("failed to load manager chats")
		}
		for _, id := range ids {
			add(id)
		}
	}
	return out
}

// NotifyAdmins sends text to every admin chat and returns how many got it.
func (n *Notifier) NotifyAdmins(ctx context.Context, text, kind string) int {
	chats := n.AdminChats(ctx)
	if len(chats) == 0 {
		n.logger.Warn().Str("kind", kind).Msg("no admin chats configured, notification dropped")
		return 0
	}
	delivered := 0
	for _, id := range chats {
		if err := n.Send(ctx, id, text, kind); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", id).Msg("failed to notify admin")
			continue
		}
		delivered++
	}
	return delivered
}
