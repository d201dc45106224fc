package telegram

import (
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/h2200080115/telegram-bot/internal/telemetry"
	"github.com/h2200080115/telegram-bot/pkg/workflow"
)

// Handler translates Telegram updates into workflow events and admin
// commands. Everything transformation-shaped goes to the engine; the handler
// owns only transport concerns.
type Handler struct {
	bot     *Bot
	engine  *workflow.Engine
	media   *Media
	store   *telemetry.Store
	adminID int64
	logger  zerolog.Logger
}

// NewHandler creates the update handler. store may be nil when telemetry is
// disabled.
func NewHandler(bot *Bot, engine *workflow.Engine, media *Media, store *telemetry.Store, adminID int64) *Handler {
	return &Handler{
		bot:     bot,
		engine:  engine,
		media:   media,
		store:   store,
		adminID: adminID,
		logger:  bot.logger.With().Str("module", "handler").Logger(),
	}
}

// HandleUpdate routes one update.
func (h *Handler) HandleUpdate(update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(update.CallbackQuery)
	}
	if update.Message != nil {
		return h.handleMessage(update.Message)
	}
	return nil
}

func (h *Handler) handleCallback(cb *tgbotapi.CallbackQuery) error {
	h.bot.answerCallback(cb.ID)
	if cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID

	data := cb.Data
	switch {
	case strings.HasPrefix(data, callbackActionPrefix):
		kind := workflow.WorkflowKind(strings.TrimPrefix(data, callbackActionPrefix))
		h.engine.Handle(workflow.MenuSelect{ChatID: chatID, Kind: kind})
	case strings.HasPrefix(data, workflow.CallbackOrganizePrefix):
		mode := workflow.OrganizeMode(strings.TrimPrefix(data, workflow.CallbackOrganizePrefix))
		h.engine.Handle(workflow.OrganizeChoice{ChatID: chatID, Mode: mode})
	default:
		h.logger.Debug().Str("data", data).Msg("Unknown callback data")
	}
	return nil
}

func (h *Handler) handleMessage(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if h.store != nil && msg.From != nil {
		h.store.UpsertUser(msg.From.ID, msg.From.UserName, msg.From.FirstName,
			msg.From.LastName, chatID, msg.From.LanguageCode)
	}

	if msg.IsCommand() {
		return h.handleCommand(msg)
	}

	// Reply-keyboard shortcuts come in as plain text.
	switch msg.Text {
	case shortcutMainMenu:
		return h.sendMainMenu(chatID)
	case shortcutHandwritten:
		h.engine.Handle(workflow.MenuSelect{ChatID: chatID, Kind: workflow.KindHandwritten})
		return nil
	}

	if name, fileID, ok := uploadOf(msg); ok {
		data, err := h.media.Download(fileID)
		if err != nil {
			h.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to download upload")
			return h.bot.SendText(chatID, "Could not download that file, please try again.")
		}
		h.engine.Handle(workflow.FileUpload{ChatID: chatID, Name: name, Data: data})
		return nil
	}

	if msg.Text != "" {
		h.engine.Handle(workflow.TextReply{ChatID: chatID, Text: msg.Text})
	}
	return nil
}

func (h *Handler) handleCommand(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		welcome := tgbotapi.NewMessage(chatID, welcomeText)
		welcome.ReplyMarkup = shortcutMarkup()
		if _, err := h.bot.api.Send(welcome); err != nil {
			return fmt.Errorf("failed to send welcome: %w", err)
		}
		return h.sendMainMenu(chatID)

	case "help":
		return h.bot.SendText(chatID, helpText)

	case "menu":
		return h.sendMainMenu(chatID)

	case "cancel":
		h.engine.Handle(workflow.Cancel{ChatID: chatID})
		return nil

	case "admin", "stats":
		if !h.isAdmin(msg) {
			return nil
		}
		return h.sendStats(chatID)

	case "export":
		if !h.isAdmin(msg) {
			return nil
		}
		return h.sendExport(chatID)

	default:
		return h.bot.SendText(chatID, "Unknown command. Try /help.")
	}
}

func (h *Handler) sendMainMenu(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "What should I do?")
	msg.ReplyMarkup = mainMenuMarkup()
	if _, err := h.bot.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send menu: %w", err)
	}
	return nil
}

func (h *Handler) isAdmin(msg *tgbotapi.Message) bool {
	return h.adminID != 0 && msg.From != nil && msg.From.ID == h.adminID
}

func (h *Handler) sendStats(chatID int64) error {
	if h.store == nil {
		return h.bot.SendText(chatID, "Telemetry is disabled.")
	}

	stats, err := h.store.Summary()
	if err != nil {
		return fmt.Errorf("failed to read usage stats: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Users: %d\nActions: %d\n", stats.Users, stats.Actions)
	if len(stats.TopActions) > 0 {
		sb.WriteString("\nMost common actions:\n")
		for _, a := range stats.TopActions {
			fmt.Fprintf(&sb, "  %s: %d\n", a.Action, a.Count)
		}
	}
	if len(stats.RecentUsers) > 0 {
		sb.WriteString("\nRecent users:\n")
		for _, u := range stats.RecentUsers {
			name := u.Username
			if name == "" {
				name = u.FirstName
			}
			fmt.Fprintf(&sb, "  %d %s (%s)\n", u.UserID, name, u.LastSeen.Format("2006-01-02"))
		}
	}
	return h.bot.SendText(chatID, sb.String())
}

// sendExport dumps both usage tables as CSV documents and deletes the dumps
// once they are sent.
func (h *Handler) sendExport(chatID int64) error {
	if h.store == nil {
		return h.bot.SendText(chatID, "Telemetry is disabled.")
	}

	dir, err := os.MkdirTemp("", "docbot-export-")
	if err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	defer os.RemoveAll(dir)

	usersPath, actionsPath, err := h.store.ExportCSV(dir)
	if err != nil {
		return fmt.Errorf("failed to export usage data: %w", err)
	}

	if err := h.bot.SendDocument(chatID, usersPath, "Users"); err != nil {
		return err
	}
	return h.bot.SendDocument(chatID, actionsPath, "Actions")
}

// uploadOf extracts the uploadable payload of a message: a document with its
// declared name, or the largest photo size as a JPEG.
func uploadOf(msg *tgbotapi.Message) (name, fileID string, ok bool) {
	if msg.Document != nil {
		return msg.Document.FileName, msg.Document.FileID, true
	}
	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		return "photo.jpg", best.FileID, true
	}
	return "", "", false
}
