// Package calendar mirrors bookings into Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Shorlotik/Bot-Stomatologija/internal/config"
)

// Event is the part of a calendar entry the bot controls.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Client creates, moves and removes calendar events.
type Client interface {
	CreateEvent(ctx context.Context, e Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, e Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// New returns a Google client, or a NoopClient when credentials are missing
// or the service cannot be built.
func New(ctx context.Context, cfg config.GoogleConfig, loc *time.Location, logger zerolog.Logger) Client {
	if !cfg.Enabled() {
		logger.Warn().Msg("Google Calendar credentials not configured, calendar sync disabled")
		return NoopClient{}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to init Google Calendar, calendar sync disabled")
		return NoopClient{}
	}

	logger.Info().Str("calendar_id", cfg.CalendarID).Msg("Google Calendar sync enabled")
	return NewGoogleClient(svc, cfg.CalendarID, loc)
}

// GoogleClient talks to the Calendar v3 API.
type GoogleClient struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

func NewGoogleClient(svc *gcal.Service, calendarID string, loc *time.Location) *GoogleClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &GoogleClient{svc: svc, calendarID: calendarID, loc: loc}
}

func (c *GoogleClient) dateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.In(c.loc).Format(time.RFC3339),
		TimeZone: c.loc.String(),
	}
}

func (c *GoogleClient) toEvent(e Event) *gcal.Event {
	return &gcal.Event{
		Summary:     e.Summary,
		Description: e.Description,
		Start:       c.dateTime(e.Start),
		End:         c.dateTime(e.End),
	}
}

func (c *GoogleClient) CreateEvent(ctx context.Context, e Event) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, c.toEvent(e)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, e Event) error {
	if _, err := c.svc.Events.Patch(c.calendarID, eventID, c.toEvent(e)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes an event. An event that is already gone is not an error.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err == nil || isGone(err) {
		return nil
	}
	return fmt.Errorf("delete event %s: %w", eventID, err)
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}

// NoopClient is used when calendar sync is disabled.
type NoopClient struct{}

func (NoopClient) CreateEvent(context.Context, Event) (string, error) { return "", nil }
func (NoopClient) UpdateEvent(context.Context, string, Event) error   { return nil }
func (NoopClient) DeleteEvent(context.Context, string) error          { return nil }
