package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RECURRENCE_CONFIG", "")
	t.Setenv("RECURRENCE_MAX_INSTANCES", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, DefaultRecurrenceConfig(), cfg.Recurrence)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("RECURRENCE_MAX_INSTANCES", "50")
	t.Setenv("RECURRENCE_MONTH_DAY_POLICY", "CLAMP")
	t.Setenv("TOPUP_CRON", "@hourly")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 50, cfg.Recurrence.MaxInstances)
	assert.Equal(t, "clamp", cfg.Recurrence.MonthDayPolicy)
	assert.Equal(t, "@hourly", cfg.TopUpCron)
}

func TestRecurrenceConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recurrence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_instances: 250\npreview_days: 14\npreview_cache_ttl: 90s\n"), 0o600))

	c := DefaultRecurrenceConfig()
	require.NoError(t, c.Overlay(path))

	assert.Equal(t, 250, c.MaxInstances)
	assert.Equal(t, 14, c.PreviewDays)
	assert.Equal(t, 90*time.Second, c.PreviewCacheTTL)
	// Untouched keys keep their values.
	assert.Equal(t, 3, c.HorizonMonths)
	assert.Equal(t, 30, c.TopUpBufferDays)
}

func TestRecurrenceConfig_OverlayErrors(t *testing.T) {
	c := DefaultRecurrenceConfig()
	assert.Error(t, c.Overlay(""))
	assert.Error(t, c.Overlay(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_instances: [1, 2"), 0o600))
	assert.Error(t, c.Overlay(path))
}

func TestRecurrenceConfig_Normalize(t *testing.T) {
	c := RecurrenceConfig{MaxInstances: -1, MonthDayPolicy: "round", PreviewCacheTTL: -time.Second}
	c.Normalize()

	assert.Equal(t, 100, c.MaxInstances)
	assert.Equal(t, 3, c.HorizonMonths)
	assert.Equal(t, "skip", c.MonthDayPolicy)
	assert.Zero(t, c.PreviewCacheTTL)
}

func TestRecurrenceConfig_Options(t *testing.T) {
	c := DefaultRecurrenceConfig()
	c.MonthDayPolicy = "clamp"

	opts := c.Options()
	assert.Equal(t, 100, opts.MaxOccurrences)
	assert.Equal(t, recurrence.ClampToMonthEnd, opts.MonthDayPolicy)
	assert.Equal(t, 3, opts.HorizonMonths)
	assert.Equal(t, 30*24*time.Hour, opts.PreviewWindow)
	assert.Equal(t, 30*24*time.Hour, opts.TopUpBuffer)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&Config{Timezone: "Mars/Olympus_Mons"}).Location())
	assert.Equal(t, "UTC", (&Config{Timezone: "UTC"}).Location().String())
}
