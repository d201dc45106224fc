package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
	cfg.Font.Path = "/usr/share/fonts/handwriting.ttf"
	cfg.Telemetry.DBPath = "/tmp/usage.db"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "@hourly", cfg.Scratch.SweepSchedule)
	assert.Equal(t, 120, cfg.Scratch.MaxAgeMinutes)
	assert.Equal(t, float64(20), cfg.Font.Size)
	assert.True(t, cfg.Font.HotReload)
	assert.False(t, cfg.Rembg.Enabled)
	assert.Equal(t, "http://127.0.0.1:7000", cfg.Rembg.URL)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("missing bot token", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telegram.BotToken = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bot token")
	})

	t.Run("missing font path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Font.Path = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "font path")
	})

	t.Run("non-positive font size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Font.Size = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "font size")
	})

	t.Run("negative scratch max age", func(t *testing.T) {
		cfg := validConfig()
		cfg.Scratch.MaxAgeMinutes = -1

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_age_minutes")
	})

	t.Run("rembg enabled without URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Rembg.Enabled = true
		cfg.Rembg.URL = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "rembg url")
	})

	t.Run("telemetry enabled without db path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.DBPath = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db_path")
	})

	t.Run("metrics enabled without addr", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "metrics addr")
	})

	t.Run("disabled services skip their checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Rembg.Enabled = false
		cfg.Rembg.URL = ""
		cfg.Telemetry.Enabled = false
		cfg.Telemetry.DBPath = ""
		cfg.Metrics.Enabled = false
		cfg.Metrics.Addr = ""

		err := cfg.Validate()
		assert.NoError(t, err)
	})
}

func TestConfigString(t *testing.T) {
	cfg := validConfig()

	str := cfg.String()
	assert.NotEmpty(t, str)
	assert.Contains(t, str, "telegram")
	assert.Contains(t, str, "font")
}
