package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
	"gopkg.in/yaml.v3"
)

// RecurrenceConfig tunes recurring event expansion.
type RecurrenceConfig struct {
	// MaxInstances caps the instances one recurring event may create.
	MaxInstances int `yaml:"max_instances" json:"max_instances"`
	// HorizonMonths is the eager look-ahead for rules without an end date.
	HorizonMonths int `yaml:"horizon_months" json:"horizon_months"`
	// PreviewDays is the rolling window used by previews and top-ups.
	PreviewDays int `yaml:"preview_days" json:"preview_days"`
	// TopUpBufferDays triggers a top-up once the latest instance is closer than this.
	TopUpBufferDays int `yaml:"topup_buffer_days" json:"topup_buffer_days"`
	// MonthDayPolicy is "skip" (default) or "clamp".
	MonthDayPolicy string `yaml:"month_day_policy" json:"month_day_policy"`
	// PreviewCacheTTL is how long previews stay in Redis.
	PreviewCacheTTL time.Duration `yaml:"preview_cache_ttl" json:"preview_cache_ttl"`
}

func DefaultRecurrenceConfig() RecurrenceConfig {
	return RecurrenceConfig{
		MaxInstances:    100,
		HorizonMonths:   3,
		PreviewDays:     30,
		TopUpBufferDays: 30,
		MonthDayPolicy:  string(recurrence.SkipInvalidDays),
		PreviewCacheTTL: 10 * time.Minute,
	}
}

// RecurrenceFromEnv starts from the defaults and applies RECURRENCE_* variables.
func RecurrenceFromEnv() RecurrenceConfig {
	c := DefaultRecurrenceConfig()
	c.MaxInstances = getInt("RECURRENCE_MAX_INSTANCES", c.MaxInstances)
	c.HorizonMonths = getInt("RECURRENCE_HORIZON_MONTHS", c.HorizonMonths)
	c.PreviewDays = getInt("RECURRENCE_PREVIEW_DAYS", c.PreviewDays)
	c.TopUpBufferDays = getInt("RECURRENCE_TOPUP_BUFFER_DAYS", c.TopUpBufferDays)
	c.MonthDayPolicy = getString("RECURRENCE_MONTH_DAY_POLICY", c.MonthDayPolicy)
	if v := os.Getenv("RECURRENCE_PREVIEW_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PreviewCacheTTL = d
		}
	}
	c.Normalize()
	return c
}

// Normalize replaces missing or out-of-range values with defaults.
func (c *RecurrenceConfig) Normalize() {
	d := DefaultRecurrenceConfig()
	if c.MaxInstances <= 0 {
		c.MaxInstances = d.MaxInstances
	}
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = d.HorizonMonths
	}
	if c.PreviewDays <= 0 {
		c.PreviewDays = d.PreviewDays
	}
	if c.TopUpBufferDays <= 0 {
		c.TopUpBufferDays = d.TopUpBufferDays
	}
	switch strings.ToLower(c.MonthDayPolicy) {
	case string(recurrence.ClampToMonthEnd):
		c.MonthDayPolicy = string(recurrence.ClampToMonthEnd)
	default:
		c.MonthDayPolicy = string(recurrence.SkipInvalidDays)
	}
	if c.PreviewCacheTTL < 0 {
		c.PreviewCacheTTL = 0
	}
}

// Overlay applies the keys present in the YAML file at path on top of c.
// Keys missing from the file keep their current value.
func (c *RecurrenceConfig) Overlay(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	c.Normalize()
	return nil
}

// Options converts the config into generator options.
func (c RecurrenceConfig) Options() recurrence.Options {
	return recurrence.Options{
		MaxOccurrences: c.MaxInstances,
		MonthDayPolicy: recurrence.MonthDayPolicy(c.MonthDayPolicy),
		HorizonMonths:  c.HorizonMonths,
		PreviewWindow:  time.Duration(c.PreviewDays) * 24 * time.Hour,
		TopUpBuffer:    time.Duration(c.TopUpBufferDays) * 24 * time.Hour,
	}
}
