package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/h2200080115/telegram-bot/pkg/workflow"
)

// Bot represents a Telegram bot instance
type Bot struct {
	api    *tgbotapi.BotAPI
	logger zerolog.Logger

	handler *Handler

	// State
	running bool
	updates tgbotapi.UpdatesChannel
}

// New creates a new Telegram bot instance
func New(token string, logger zerolog.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		logger: logger.With().Str("component", "telegram").Logger(),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// SetHandler sets the update handler
func (b *Bot) SetHandler(handler *Handler) {
	b.handler = handler
}

// Start starts the bot and begins processing updates
func (b *Bot) Start() error {
	if b.running {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.updates = b.api.GetUpdatesChan(u)
	b.running = true

	go b.processUpdates()

	b.logger.Info().Msg("Telegram bot started")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	if !b.running {
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")
	b.running = false
	b.api.StopReceivingUpdates()
	return nil
}

// processUpdates processes incoming updates. Each update is handled on its
// own goroutine; the workflow engine serializes per chat, so a slow download
// for one conversation never stalls the rest.
func (b *Bot) processUpdates() {
	for update := range b.updates {
		if !b.running {
			break
		}
		if b.handler == nil {
			continue
		}
		go func(update tgbotapi.Update) {
			if err := b.handler.HandleUpdate(update); err != nil {
				b.logger.Error().
					Err(err).
					Int("update_id", update.UpdateID).
					Msg("Failed to handle update")
			}
		}(update)
	}
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	return b.running
}

// SendText sends a plain text message.
func (b *Bot) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Debug().Int64("chat_id", chatID).Msg("Message sent")
	return nil
}

// SendChoices sends a message with an inline keyboard, one button per
// choice. Choice data is sent as-is: the engine already encodes where the
// press should route.
func (b *Bot) SendChoices(chatID int64, text string, choices []workflow.Choice) error {
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send choices: %w", err)
	}
	return nil
}

// SendDocument uploads a document from scratch storage.
func (b *Bot) SendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption

	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	b.logger.Debug().
		Int64("chat_id", chatID).
		Str("path", path).
		Msg("Document sent")

	return nil
}

// SendPhoto uploads an in-memory image as a photo.
func (b *Bot) SendPhoto(chatID int64, photo []byte, caption string) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: photo})
	msg.Caption = caption

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// answerCallback acknowledges a callback query so the client stops showing a
// spinner.
func (b *Bot) answerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to answer callback query")
	}
}
