package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main bot configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Scratch storage for uploads and generated documents
	Scratch ScratchConfig `json:"scratch" mapstructure:"scratch"`

	// Handwriting font
	Font FontConfig `json:"font" mapstructure:"font"`

	// Background removal service
	Rembg RembgConfig `json:"rembg" mapstructure:"rembg"`

	// Usage telemetry
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	AdminID  int64  `json:"admin_id" mapstructure:"admin_id"`
}

// ScratchConfig holds scratch storage settings
type ScratchConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	MaxAgeMinutes int    `json:"max_age_minutes" mapstructure:"max_age_minutes"`
}

// FontConfig holds the handwriting font settings
type FontConfig struct {
	Path      string  `json:"path" mapstructure:"path"`
	Size      float64 `json:"size" mapstructure:"size"`
	HotReload bool    `json:"hot_reload" mapstructure:"hot_reload"`
}

// RembgConfig holds the background removal service settings
type RembgConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
}

// TelemetryConfig holds the usage log settings
type TelemetryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"db_path" mapstructure:"db_path"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{},
		Scratch: ScratchConfig{
			SweepSchedule: "@hourly",
			MaxAgeMinutes: 120,
		},
		Font: FontConfig{
			Size:      20,
			HotReload: true,
		},
		Rembg: RembgConfig{
			Enabled: false,
			URL:     "http://127.0.0.1:7000",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Font.Path == "" {
		return fmt.Errorf("font path is required for rendered documents")
	}
	if c.Font.Size <= 0 {
		return fmt.Errorf("font size must be positive, got %v", c.Font.Size)
	}
	if c.Scratch.MaxAgeMinutes < 0 {
		return fmt.Errorf("scratch max_age_minutes must be >= 0")
	}
	if c.Rembg.Enabled && c.Rembg.URL == "" {
		return fmt.Errorf("rembg url is required when background removal is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.DBPath == "" {
		return fmt.Errorf("telemetry db_path is required when telemetry is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when the metrics endpoint is enabled")
	}
	return nil
}
