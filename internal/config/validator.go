package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the structural contract for the JSON config file. It
// guards against type mistakes (a string admin_id, a numeric token) before
// semantic validation runs.
const configSchema = `{
	"type": "object",
	"properties": {
		"telegram": {
			"type": "object",
			"properties": {
				"bot_token": {"type": "string"},
				"admin_id": {"type": "integer"}
			}
		},
		"scratch": {
			"type": "object",
			"properties": {
				"dir": {"type": "string"},
				"sweep_schedule": {"type": "string"},
				"max_age_minutes": {"type": "integer", "minimum": 0}
			}
		},
		"font": {
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"size": {"type": "number", "exclusiveMinimum": 0},
				"hot_reload": {"type": "boolean"}
			}
		},
		"rembg": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"url": {"type": "string"}
			}
		},
		"telemetry": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"db_path": {"type": "string"}
			}
		},
		"metrics": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"addr": {"type": "string"}
			}
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": {"type": "string"},
				"file": {"type": "string"},
				"pretty": {"type": "boolean"}
			}
		},
		"data_dir": {"type": "string"}
	}
}`

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSchema checks a raw JSON config document against the schema.
func (v *Validator) ValidateSchema(document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	// Example: 123456789:ABCdefGHIjklMNOpqrsTUVwxyz
	pattern := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !pattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateCronSchedule validates the janitor sweep schedule
func (v *Validator) ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return nil // Use default
	}
	if strings.HasPrefix(schedule, "@") {
		return nil // descriptors like @hourly are checked at start
	}
	if len(strings.Fields(schedule)) != 5 {
		return fmt.Errorf("invalid cron schedule: %s", schedule)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateCronSchedule(cfg.Scratch.SweepSchedule); err != nil {
		errors = append(errors, err)
	}

	if cfg.Font.Size <= 0 {
		errors = append(errors, fmt.Errorf("font size must be positive"))
	}

	return errors
}
