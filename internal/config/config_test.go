package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_BOT_TOKEN", "123:abc")

	path := writeFile(t, dir, "config.yaml", `
telegram:
  bot_token: ${TEST_BOT_TOKEN}
database:
  path: `+filepath.Join(dir, "db", "bot.db")+`
admin:
  ids: [42]
timezone: Europe/Minsk
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 60, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, time.Minute, cfg.SlotTTL())
	assert.Equal(t, "@hourly", cfg.Reminders.Spec)
	assert.Equal(t, DefaultSchedulePath, cfg.SchedulePath)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Equal(t, "Europe/Minsk", cfg.Location().String())
	assert.True(t, cfg.IsAdminID(42))
	assert.False(t, cfg.IsAdminID(7))
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_PathFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
telegram:
  bot_token: token
database:
  path: `+filepath.Join(dir, "bot.db")+`
admin:
  password: secret
`)
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Admin.Password)
	assert.Equal(t, DefaultTimezone, cfg.Timezone)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Telegram.BotToken = "token"
		c.Admin.IDs = []int64{1}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.BotToken = " " }, "telegram.bot_token"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"negative retention", func(c *Config) { c.Backup.RetentionDays = -1 }, "retention_days"},
		{"bad api port", func(c *Config) { c.API.Enabled = true; c.API.Port = 70000 }, "api.port"},
		{"no admin", func(c *Config) { c.Admin.IDs = nil }, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

const scheduleYAML = `
weekly:
  tuesday: {open: "13:00", close: "19:00"}
  friday: {open: "09:00", close: "15:00"}
restricted:
  weekday: monday
  open: "13:00"
  close: "17:30"
  starts: ["13:00", "14:30", "16:00", "17:30"]
services:
  - name: Консультация
    duration_minutes: 30
  - name: БРТ
    duration_minutes: 30
    category: nutrition
    restricted: true
holidays:
  - date: "2024-01-01"
    name: Новый год
`

func TestParseScheduleConfig(t *testing.T) {
	cfg, err := ParseScheduleConfig([]byte(scheduleYAML))
	require.NoError(t, err)

	tpl := cfg.Template()
	require.Len(t, tpl, 2)
	assert.Equal(t, "13:00 - 19:00", tpl[time.Tuesday].String())
	assert.Equal(t, "09:00 - 15:00", tpl[time.Friday].String())

	rm := cfg.RestrictedMode()
	assert.Equal(t, time.Monday, rm.Weekday)
	assert.Len(t, rm.Starts, 4)
	assert.Equal(t, "17:30", rm.Starts[3].String())

	cat := cfg.Catalog()
	require.Len(t, cat, 2)
	assert.Equal(t, model.CategoryDentistry, cat[0].Category)
	assert.True(t, cat.IsRestricted("БРТ"))

	loc := time.FixedZone("MSK", 3*3600)
	holidays := cfg.BlockedDates(loc)
	require.Len(t, holidays, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, loc), holidays[0].Date)
	assert.Equal(t, "Новый год", holidays[0].Description)
}

func TestParseScheduleConfig_Defaults(t *testing.T) {
	cfg, err := ParseScheduleConfig([]byte("holidays: []\n"))
	require.NoError(t, err)

	assert.Equal(t, model.DefaultWeeklyTemplate(), cfg.Template())
	assert.Equal(t, model.DefaultRestrictedMode(), cfg.RestrictedMode())
	assert.Len(t, cfg.Catalog(), len(model.DefaultCatalog()))
}

func TestParseScheduleConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"bad open", "weekly:\n  tuesday: {open: \"25:00\", close: \"19:00\"}\n", "weekly[tuesday]: invalid open time '25:00'"},
		{"inverted window", "weekly:\n  tuesday: {open: \"19:00\", close: \"13:00\"}\n", "close must be after open"},
		{"unknown weekday", "weekly:\n  funday: {open: \"09:00\", close: \"10:00\"}\n", "unknown weekday"},
		{"restricted without starts", "restricted: {weekday: monday, open: \"13:00\", close: \"17:30\"}\n", "restricted.starts"},
		{"bad restricted start", "restricted: {weekday: monday, open: \"13:00\", close: \"17:30\", starts: [\"1pm\"]}\n", "restricted.starts[0]"},
		{"unaligned open", "weekly:\n  tuesday: {open: \"09:15\", close: \"12:00\"}\n", "weekly[tuesday]: open time '09:15' is not aligned to 30 minutes"},
		{"unaligned close", "weekly:\n  tuesday: {open: \"09:00\", close: \"12:10\"}\n", "weekly[tuesday]: close time '12:10' is not aligned to 30 minutes"},
		{"trailing garbage", "weekly:\n  tuesday: {open: \"13:00x\", close: \"19:00\"}\n", "weekly[tuesday]: invalid open time '13:00x'"},
		{"unaligned restricted window", "restricted: {weekday: monday, open: \"13:05\", close: \"17:30\", starts: [\"13:30\"]}\n", "restricted: open time '13:05'"},
		{"unaligned restricted start", "restricted: {weekday: monday, open: \"13:00\", close: \"17:30\", starts: [\"13:30\", \"14:45\"]}\n", "restricted.starts[1]: time '14:45' is not aligned to 30 minutes"},
		{"duplicate service", "services:\n  - {name: A, duration_minutes: 30}\n  - {name: A, duration_minutes: 60}\n", "duplicate name"},
		{"zero duration", "services:\n  - {name: A, duration_minutes: 0}\n", "duration_minutes"},
		{"bad category", "services:\n  - {name: A, duration_minutes: 30, category: spa}\n", "unknown category"},
		{"bad holiday", "holidays:\n  - {date: \"01.01.2024\"}\n", "holiday[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScheduleConfig([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScheduleWatcher(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schedule.yaml", scheduleYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var latest atomic.Pointer[ScheduleConfig]
	w := &ScheduleWatcher{
		Path:     path,
		Interval: 10 * time.Millisecond,
		OnUpdate: func(c *ScheduleConfig) {
			calls.Add(1)
			latest.Store(c)
		},
	}
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, int32(1), calls.Load())

	updated := scheduleYAML + "  - date: \"2024-01-07\"\n    name: Рождество\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		c := latest.Load()
		return calls.Load() >= 2 && c != nil && len(c.Holidays) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduleWatcher_Poll(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schedule.yaml", scheduleYAML)

	var updates int
	w := &ScheduleWatcher{Path: path, OnUpdate: func(*ScheduleConfig) { updates++ }}

	tests := []struct {
		name        string
		write       func()
		wantChanged bool
		wantErr     string
		wantUpdates int
	}{
		{"initial load", func() {}, true, "", 1},
		{"unchanged", func() {}, false, "", 1},
		{"touched only", func() {
			future := time.Now().Add(time.Minute)
			require.NoError(t, os.Chtimes(path, future, future))
		}, false, "", 1},
		{"broken edit", func() {
			writeFile(t, dir, "schedule.yaml", "weekly:\n  tuesday: {open: \"09:15\", close: \"12:00\"}\n")
		}, false, "not aligned to 30 minutes", 1},
		{"broken edit reported once", func() {}, false, "", 1},
		{"fixed edit", func() {
			writeFile(t, dir, "schedule.yaml", scheduleYAML+"  - date: \"2024-01-07\"\n")
		}, true, "", 2},
		{"file removed", func() {
			require.NoError(t, os.Remove(path))
		}, false, "read schedule config", 2},
	}

	for _, tt := range tests {
		tt.write()
		changed, err := w.poll()
		if tt.wantErr != "" {
			require.Error(t, err, tt.name)
			assert.Contains(t, err.Error(), tt.wantErr, tt.name)
		} else {
			require.NoError(t, err, tt.name)
		}
		assert.Equal(t, tt.wantChanged, changed, tt.name)
		assert.Equal(t, tt.wantUpdates, updates, tt.name)
	}
}

func TestScheduleWatcher_MissingFile(t *testing.T) {
	w := &ScheduleWatcher{Path: filepath.Join(t.TempDir(), "none.yaml"), Interval: time.Second}
	assert.Error(t, w.Start(context.Background()))
}
