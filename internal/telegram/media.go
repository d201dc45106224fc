package telegram

import (
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxUploadSize caps downloads; Telegram bots cannot fetch more than 20MB
// anyway.
const MaxUploadSize = 20 * 1024 * 1024

// Media downloads user uploads from Telegram's file API.
type Media struct {
	bot    *Bot
	logger zerolog.Logger
}

// NewMedia creates a new media downloader
func NewMedia(bot *Bot) *Media {
	return &Media{
		bot:    bot,
		logger: bot.logger.With().Str("module", "media").Logger(),
	}
}

// Download fetches a file's bytes by its Telegram file ID.
func (m *Media) Download(fileID string) ([]byte, error) {
	file, err := m.bot.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	if file.FileSize > MaxUploadSize {
		return nil, fmt.Errorf("file size %d exceeds maximum %d", file.FileSize, MaxUploadSize)
	}

	url := file.Link(m.bot.api.Token)

	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("file exceeds maximum size %d", MaxUploadSize)
	}

	m.logger.Debug().
		Str("file_id", fileID).
		Int("size", len(data)).
		Msg("File downloaded")

	return data, nil
}
