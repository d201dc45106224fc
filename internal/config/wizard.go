package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Docbot Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Telegram
	fmt.Println("Telegram:")
	fmt.Println()

	for {
		fmt.Print("Bot token (from @BotFather): ")
		token, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if token == "" {
			fmt.Println("Error: bot token is required")
			continue
		}

		if err := validator.ValidateTelegramToken(token); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Telegram.BotToken = token
		break
	}

	for {
		fmt.Print("Admin user ID for /stats and /export (press Enter to skip): ")
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if raw == "" {
			break
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fmt.Println("Error: admin ID must be a number")
			continue
		}

		cfg.Telegram.AdminID = id
		break
	}

	fmt.Println()

	// Handwriting font
	fmt.Println("Handwriting font:")
	for {
		fmt.Print("Path to a .ttf font file: ")
		path, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if path == "" {
			fmt.Println("Error: font path is required for rendered documents")
			continue
		}

		if _, err := os.Stat(path); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		cfg.Font.Path = path
		break
	}

	fmt.Println()

	// Background removal
	fmt.Print("Enable background removal (requires a running rembg service)? (y/n) [n]: ")
	enable, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if strings.ToLower(enable) == "y" {
		cfg.Rembg.Enabled = true

		fmt.Printf("Rembg service URL [%s]: ", cfg.Rembg.URL)
		url, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if url != "" {
			cfg.Rembg.URL = url
		}
	}

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
