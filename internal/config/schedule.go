package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

// HoursConfig is a working window in HH:MM form.
type HoursConfig struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// RestrictedConfig describes the one-weekday service with fixed start times.
type RestrictedConfig struct {
	Weekday string   `yaml:"weekday"` // "monday"
	Open    string   `yaml:"open"`
	Close   string   `yaml:"close"`
	Starts  []string `yaml:"starts"`
}

// ServiceConfig is one catalog entry.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Category        string `yaml:"category"`
	Restricted      bool   `yaml:"restricted"`
}

// HolidayConfig represents a holiday configuration.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"` // "Новый год"
}

// ScheduleConfig is the root configuration for schedule.yaml.
type ScheduleConfig struct {
	Weekly     map[string]HoursConfig `yaml:"weekly"`
	Restricted *RestrictedConfig      `yaml:"restricted,omitempty"`
	Services   []ServiceConfig        `yaml:"services"`
	Holidays   []HolidayConfig        `yaml:"holidays"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday '%s'", s)
	}
	return d, nil
}

// LoadScheduleConfig loads and validates schedule configuration from YAML file.
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	if path == "" {
		path = DefaultSchedulePath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}

	return ParseScheduleConfig(data)
}

// ParseScheduleConfig decodes and validates a schedule document.
func ParseScheduleConfig(data []byte) (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schedule config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedule config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ScheduleConfig) Validate() error {
	for name, h := range c.Weekly {
		if _, err := ParseWeekday(name); err != nil {
			return fmt.Errorf("weekly[%s]: %w", name, err)
		}
		if _, err := parseHours(h.Open, h.Close, fmt.Sprintf("weekly[%s]", name)); err != nil {
			return err
		}
	}

	if r := c.Restricted; r != nil {
		if _, err := ParseWeekday(r.Weekday); err != nil {
			return fmt.Errorf("restricted.weekday: %w", err)
		}
		if _, err := parseHours(r.Open, r.Close, "restricted"); err != nil {
			return err
		}
		if len(r.Starts) == 0 {
			return fmt.Errorf("restricted.starts: at least one start time is required")
		}
		for i, s := range r.Starts {
			t, err := model.ParseTimeOfDay(s)
			if err != nil {
				return fmt.Errorf("restricted.starts[%d]: invalid time '%s', expected HH:MM", i, s)
			}
			if !t.Aligned(schedule.QuantumMinutes) {
				return fmt.Errorf("restricted.starts[%d]: time '%s' is not aligned to %d minutes", i, s, schedule.QuantumMinutes)
			}
		}
	}

	names := make(map[string]bool)
	for i, s := range c.Services {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("services[%d]: duplicate name '%s'", i, s.Name)
		}
		names[s.Name] = true
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("services[%d]: duration_minutes must be positive", i)
		}
		switch model.ServiceCategory(s.Category) {
		case "", model.CategoryDentistry, model.CategoryNutrition:
		default:
			return fmt.Errorf("services[%d]: unknown category '%s'", i, s.Category)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func parseHours(open, closing, prefix string) (model.Window, error) {
	o, err := model.ParseTimeOfDay(open)
	if err != nil {
		return model.Window{}, fmt.Errorf("%s: invalid open time '%s'", prefix, open)
	}
	c, err := model.ParseTimeOfDay(closing)
	if err != nil {
		return model.Window{}, fmt.Errorf("%s: invalid close time '%s'", prefix, closing)
	}
	if !o.Aligned(schedule.QuantumMinutes) {
		return model.Window{}, fmt.Errorf("%s: open time '%s' is not aligned to %d minutes", prefix, open, schedule.QuantumMinutes)
	}
	if !c.Aligned(schedule.QuantumMinutes) {
		return model.Window{}, fmt.Errorf("%s: close time '%s' is not aligned to %d minutes", prefix, closing, schedule.QuantumMinutes)
	}
	w := model.Window{Open: o, Close: c}
	if !w.Valid() {
		return model.Window{}, fmt.Errorf("%s: close must be after open", prefix)
	}
	return w, nil
}

// Template builds the weekly template. An empty weekly section keeps the
// clinic defaults.
func (c *ScheduleConfig) Template() model.WeeklyTemplate {
	if len(c.Weekly) == 0 {
		return model.DefaultWeeklyTemplate()
	}
	t := make(model.WeeklyTemplate, len(c.Weekly))
	for name, h := range c.Weekly {
		d, err := ParseWeekday(name)
		if err != nil {
			continue
		}
		w, err := parseHours(h.Open, h.Close, name)
		if err != nil {
			continue
		}
		t[d] = w
	}
	return t
}

// RestrictedMode builds the fixed-start schedule, defaulting to Monday БРТ.
func (c *ScheduleConfig) RestrictedMode() model.RestrictedMode {
	r := c.Restricted
	if r == nil {
		return model.DefaultRestrictedMode()
	}
	d, _ := ParseWeekday(r.Weekday)
	w, _ := parseHours(r.Open, r.Close, "restricted")
	mode := model.RestrictedMode{Weekday: d, Window: w}
	for _, s := range r.Starts {
		if t, err := model.ParseTimeOfDay(s); err == nil {
			mode.Starts = append(mode.Starts, t)
		}
	}
	return mode
}

// Catalog builds the service list, defaulting to the clinic catalog.
func (c *ScheduleConfig) Catalog() model.Catalog {
	if len(c.Services) == 0 {
		return model.DefaultCatalog()
	}
	out := make(model.Catalog, 0, len(c.Services))
	for _, s := range c.Services {
		cat := model.ServiceCategory(s.Category)
		if cat == "" {
			cat = model.CategoryDentistry
		}
		out = append(out, model.Service{
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Category:        cat,
			Restricted:      s.Restricted,
		})
	}
	return out
}

// BlockedDates converts holidays to dates in loc.
func (c *ScheduleConfig) BlockedDates(loc *time.Location) []model.BlockedDate {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.BlockedDate, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := time.ParseInLocation("2006-01-02", h.Date, loc)
		if err != nil {
			continue
		}
		out = append(out, model.BlockedDate{Date: d, Description: h.Name})
	}
	return out
}
