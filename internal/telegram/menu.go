package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/h2200080115/telegram-bot/pkg/workflow"
)

const callbackActionPrefix = "act:"

const welcomeText = `Hi! I work with your documents.

Pick an action from the menu below, or type /help to see what I can do.`

const helpText = `What I can do:

Split PDF - cut out a page range, or split every N pages
Organize PDF - remove, reorder, or extract pages
Merge PDFs - join two PDFs into one
Handwritten PDF - render a .txt file as a page-image PDF
Word to PDF / PDF to Word
JPG to PNG / PNG to JPG
Remove background - strip an image background
Read QR / Make QR

/cancel aborts the current operation.`

// mainMenuRows is the top-level action keyboard, mirroring the workflows the
// engine understands.
var mainMenuRows = [][]struct {
	label string
	kind  workflow.WorkflowKind
}{
	{
		{"Split: page range", workflow.KindSplitRange},
		{"Split: every N pages", workflow.KindSplitEvery},
	},
	{
		{"Organize PDF", workflow.KindOrganize},
		{"Merge PDFs", workflow.KindMerge},
	},
	{
		{"Handwritten PDF", workflow.KindHandwritten},
	},
	{
		{"Word to PDF", workflow.KindWordToPDF},
		{"PDF to Word", workflow.KindPDFToWord},
	},
	{
		{"JPG to PNG", workflow.KindJpgToPng},
		{"PNG to JPG", workflow.KindPngToJpg},
	},
	{
		{"Remove background", workflow.KindRemoveBackground},
	},
	{
		{"Read QR", workflow.KindReadQR},
		{"Make QR", workflow.KindMakeQR},
	},
}

// mainMenuMarkup builds the inline main menu.
func mainMenuMarkup() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(mainMenuRows))
	for _, row := range mainMenuRows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, item := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
				item.label, callbackActionPrefix+string(item.kind)))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// shortcutMarkup is the persistent reply keyboard with the two most used
// entries.
func shortcutMarkup() tgbotapi.ReplyKeyboardMarkup {
	markup := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(shortcutHandwritten),
			tgbotapi.NewKeyboardButton(shortcutMainMenu),
		),
	)
	markup.ResizeKeyboard = true
	return markup
}

const (
	shortcutHandwritten = "Handwritten PDF"
	shortcutMainMenu    = "Main Menu"
)
