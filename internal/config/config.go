package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Shorlotik/Bot-Stomatologija/internal/timezone"
)

const (
	DefaultPath         = "configs/config.yaml"
	DefaultSchedulePath = "configs/schedule.yaml"
	DefaultTimezone     = timezone.Default
	PathEnv             = "BOT_CONFIG_PATH"
)

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address        string `yaml:"address"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	SlotTTLSeconds int    `yaml:"slot_ttl_seconds"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	CalendarID   string `yaml:"calendar_id"`
}

// Enabled reports whether calendar sync has enough credentials to run.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	GRPCHealthPort    int  `yaml:"grpc_health_port"`
}

type APIConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           int      `yaml:"port"`
	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BookingConfig struct {
	MaxAdvanceDays        int `yaml:"max_advance_days"`
	SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`
	CalendarDays          int `yaml:"calendar_days"`
}

type AdminConfig struct {
	IDs      []int64 `yaml:"ids"`
	Password string  `yaml:"password"`
}

// ClinicConfig is shown to clients as contact details.
type ClinicConfig struct {
	Doctor         string `yaml:"doctor"`
	Specialization string `yaml:"specialization"`
	Phone          string `yaml:"phone"`
	Email          string `yaml:"email"`
	Address        string `yaml:"address"`
}

type RemindersConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Google     GoogleConfig     `yaml:"google"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Admin      AdminConfig      `yaml:"admin"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Clinic     ClinicConfig     `yaml:"clinic"`

	Timezone     string `yaml:"timezone"`
	LogLevel     string `yaml:"log_level"`
	SchedulePath string `yaml:"schedule_path"`
}

// Load reads the bot configuration. An empty path falls back to BOT_CONFIG_PATH
// and then to configs/config.yaml.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/dental.db"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Redis.SlotTTLSeconds <= 0 {
		c.Redis.SlotTTLSeconds = 60
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.Booking.MaxAdvanceDays <= 0 {
		c.Booking.MaxAdvanceDays = 60
	}
	if c.Booking.SessionTimeoutMinutes <= 0 {
		c.Booking.SessionTimeoutMinutes = 30
	}
	if c.Booking.CalendarDays <= 0 {
		c.Booking.CalendarDays = 30
	}
	if c.Reminders.Spec == "" {
		c.Reminders.Spec = "@hourly"
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SchedulePath == "" {
		c.SchedulePath = DefaultSchedulePath
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if !timezone.Valid(c.Timezone) {
		return fmt.Errorf("timezone: unknown location '%s'", c.Timezone)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days cannot be negative")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port: invalid port %d", c.API.Port)
	}
	if len(c.Admin.IDs) == 0 && c.Admin.Password == "" {
		return fmt.Errorf("admin: either ids or password must be set")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	return timezone.Load(c.Timezone)
}

// SlotTTL is how long computed slot lists stay cached.
func (c *Config) SlotTTL() time.Duration {
	return time.Duration(c.Redis.SlotTTLSeconds) * time.Second
}

// SessionTimeout is the idle time after which a booking dialog is dropped.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

// BookingMaxAdvance bounds how far ahead clients may book.
func (c *Config) BookingMaxAdvance() time.Duration {
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// IsAdminID reports whether id is listed in admin.ids.
func (c *Config) IsAdminID(id int64) bool {
	for _, a := range c.Admin.IDs {
		if a == id {
			return true
		}
	}
	return false
}
