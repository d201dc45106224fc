package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/h2200080115/telegram-bot/internal/metrics"
	"github.com/h2200080115/telegram-bot/pkg/codec"
	"github.com/h2200080115/telegram-bot/pkg/layout"
	"github.com/h2200080115/telegram-bot/pkg/ledger"
)

// User-facing replies. Markup belongs to the transport; these are plain text.
const (
	msgBusy            = "Still working on your previous request, please wait."
	msgCancelled       = "Cancelled. Pick a new action from the menu."
	msgTransformFailed = "Sorry, that operation failed. Please try again."
	msgInternalError   = "Something went wrong on our side. Please try again."
	msgNoQRCode        = "No QR code found in that image."
	msgIdleHint        = "Pick an action from the menu first."
	msgSendFirstPDF    = "Send the first PDF to merge."
	msgSendSecondPDF   = "Got it. Now send the second PDF."
	msgSendQrText      = "Send the text to encode, or upload a .txt file."
	msgOrganizeChoose  = "What should happen to the pages?"
)

var uploadPrompts = map[WorkflowKind]string{
	KindSplitRange:       "Send the PDF to split.",
	KindSplitEvery:       "Send the PDF to split.",
	KindOrganize:         "Send the PDF to organize.",
	KindHandwritten:      "Send a .txt file with the text to render.",
	KindWordToPDF:        "Send the .docx file to convert.",
	KindPDFToWord:        "Send the PDF to convert.",
	KindJpgToPng:         "Send the JPG image to convert.",
	KindPngToJpg:         "Send the PNG image to convert.",
	KindRemoveBackground: "Send the image to remove the background from.",
	KindReadQR:           "Send the image containing the QR code.",
}

var organizeChoices = []Choice{
	{Label: "Remove pages", Data: CallbackOrganizePrefix + string(OrganizeRemove)},
	{Label: "Reorder pages", Data: CallbackOrganizePrefix + string(OrganizeReorder)},
	{Label: "Extract pages", Data: CallbackOrganizePrefix + string(OrganizeExtract)},
}

// Engine routes inbound events through per-session state and invokes the
// dispatcher when a workflow has collected enough inputs. All handling for a
// chat runs serialized on that chat's queue lane.
type Engine struct {
	store     *Store
	ledger    *ledger.Ledger
	codecs    codec.Codecs
	geo       layout.Geometry
	responder Responder
	sink      Sink
	queue     *Queue
	logger    zerolog.Logger
}

// NewEngine wires the engine. sink may be nil when telemetry is disabled.
func NewEngine(store *Store, led *ledger.Ledger, codecs codec.Codecs, responder Responder, sink Sink, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		ledger:    led,
		codecs:    codecs,
		geo:       layout.DefaultGeometry(),
		responder: responder,
		sink:      sink,
		queue:     NewQueue(logger),
		logger:    logger.With().Str("component", "engine").Logger(),
	}
}

// Queue exposes the lane queue, mainly so callers can drain it on shutdown.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Handle accepts one inbound event. A session with a dispatch in flight
// rejects the event immediately instead of queueing behind it.
func (e *Engine) Handle(ev Event) {
	metrics.RecordEvent(ev.kind())

	chatID := ev.Chat()
	if e.store.IsProcessing(chatID) {
		e.say(chatID, msgBusy)
		return
	}

	e.queue.Enqueue(chatID, func(ctx context.Context) {
		e.handle(ctx, ev)
	})
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	s := e.store.Get(ev.Chat())

	var err error
	switch ev := ev.(type) {
	case MenuSelect:
		err = e.onMenu(s, ev)
	case OrganizeChoice:
		err = e.onOrganizeChoice(s, ev)
	case FileUpload:
		err = e.onUpload(ctx, s, ev)
	case TextReply:
		err = e.onText(ctx, s, ev)
	case Cancel:
		e.reset(s)
		e.say(s.ChatID, msgCancelled)
	default:
		e.logger.Warn().Int64("chat_id", s.ChatID).Msg("Unknown event type dropped")
	}

	if err != nil {
		e.fail(s, err)
	}
	metrics.SetActiveSessions(e.store.ActiveCount())
	metrics.SetTrackedScratchFiles(e.ledger.Count())
}

// onMenu starts a workflow. Starting over abandons whatever the previous
// workflow had collected.
func (e *Engine) onMenu(s *Session, ev MenuSelect) error {
	e.ledger.ReleaseAll(s.ChatID)
	s.Files = nil
	s.Kind = ev.Kind
	s.OrganizeMode = ""

	e.record(s, "menu_select", string(ev.Kind), "")

	switch ev.Kind {
	case KindMerge:
		s.State = StateAwaitingFirstMergeFile
		e.say(s.ChatID, msgSendFirstPDF)
	case KindMakeQR:
		s.State = StateAwaitingQrText
		e.say(s.ChatID, msgSendQrText)
	default:
		prompt, ok := uploadPrompts[ev.Kind]
		if !ok {
			s.State = StateIdle
			return Validationf("Unknown action, pick one from the menu.")
		}
		s.State = StateAwaitingUpload
		e.say(s.ChatID, prompt)
	}

	e.logger.Debug().
		Int64("chat_id", s.ChatID).
		Str("workflow", string(ev.Kind)).
		Str("state", s.State.String()).
		Msg("Workflow started")

	return nil
}

func (e *Engine) onOrganizeChoice(s *Session, ev OrganizeChoice) error {
	if s.State != StateAwaitingOrganizeChoice {
		return Validationf(msgIdleHint)
	}
	switch ev.Mode {
	case OrganizeRemove, OrganizeReorder, OrganizeExtract:
	default:
		return Validationf("Unknown choice, pick one of the options.")
	}

	s.OrganizeMode = ev.Mode
	s.State = StateAwaitingOrganizeIndices
	switch ev.Mode {
	case OrganizeRemove:
		e.say(s.ChatID, "Send the pages to remove, like 2,4 or 3-5.")
	case OrganizeReorder:
		e.say(s.ChatID, "Send the new page order, like 3,1,2. Pages may repeat.")
	case OrganizeExtract:
		e.say(s.ChatID, "Send the pages to extract, like 2,5 or 1-3. Pages may repeat.")
	}
	return nil
}

func (e *Engine) onUpload(ctx context.Context, s *Session, ev FileUpload) error {
	switch s.State {
	case StateAwaitingUpload:
		return e.onWorkflowUpload(ctx, s, ev)

	case StateAwaitingFirstMergeFile:
		if !hasExt(ev.Name, ".pdf") {
			return Validationf("Merge needs PDF files. %q is not a PDF.", ev.Name)
		}
		if _, err := e.saveUpload(s, ev); err != nil {
			return err
		}
		s.State = StateAwaitingSecondMergeFile
		e.say(s.ChatID, msgSendSecondPDF)
		return nil

	case StateAwaitingSecondMergeFile:
		if !hasExt(ev.Name, ".pdf") {
			return Validationf("Merge needs PDF files. %q is not a PDF.", ev.Name)
		}
		if _, err := e.saveUpload(s, ev); err != nil {
			return err
		}
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchMerge)

	case StateAwaitingQrText:
		// The original flow also accepts a .txt upload as the QR source.
		if !hasExt(ev.Name, ".txt") {
			return Validationf("Send plain text or a .txt file.")
		}
		text := strings.TrimSpace(string(ev.Data))
		if text == "" {
			return Validationf("That file is empty.")
		}
		return e.dispatch(ctx, s, ev.Name, func(ctx context.Context, s *Session) error {
			return e.dispatchQrEncode(s, text)
		})

	default:
		return Validationf(msgIdleHint)
	}
}

// onWorkflowUpload handles the single-upload workflows.
func (e *Engine) onWorkflowUpload(ctx context.Context, s *Session, ev FileUpload) error {
	exts, ok := uploadExts[s.Kind]
	if !ok {
		return Validationf(msgIdleHint)
	}
	if !hasExt(ev.Name, exts...) {
		return Validationf("%q is not the expected file type (%s).", ev.Name, strings.Join(exts, ", "))
	}

	if _, err := e.saveUpload(s, ev); err != nil {
		return err
	}

	switch s.Kind {
	case KindSplitRange:
		n, err := e.codecs.Document.PageCount(s.Files[0].Path)
		if err != nil {
			return &CodecError{Op: "page count", Err: err}
		}
		s.State = StateAwaitingRangeText
		e.say(s.ChatID, fmt.Sprintf("The document has %d pages. Send a range like 2-5.", n))
		return nil

	case KindSplitEvery:
		n, err := e.codecs.Document.PageCount(s.Files[0].Path)
		if err != nil {
			return &CodecError{Op: "page count", Err: err}
		}
		s.State = StateAwaitingStepText
		e.say(s.ChatID, fmt.Sprintf("The document has %d pages. Split every how many pages?", n))
		return nil

	case KindOrganize:
		s.State = StateAwaitingOrganizeChoice
		if err := e.responder.SendChoices(s.ChatID, msgOrganizeChoose, organizeChoices); err != nil {
			e.logger.Warn().Err(err).Int64("chat_id", s.ChatID).Msg("Failed to send choices")
		}
		return nil

	case KindHandwritten:
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchHandwritten)
	case KindWordToPDF:
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchWordToPDF)
	case KindPDFToWord:
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchPDFToWord)
	case KindJpgToPng:
		return e.dispatchUpload(ctx, s, ev.Name, func(ctx context.Context, s *Session) error {
			return e.dispatchImageConvert(s, ".png")
		})
	case KindPngToJpg:
		return e.dispatchUpload(ctx, s, ev.Name, func(ctx context.Context, s *Session) error {
			return e.dispatchImageConvert(s, ".jpg")
		})
	case KindRemoveBackground:
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchRemoveBackground)
	case KindReadQR:
		return e.dispatchUpload(ctx, s, ev.Name, e.dispatchReadQR)
	default:
		return Validationf(msgIdleHint)
	}
}

func (e *Engine) onText(ctx context.Context, s *Session, ev TextReply) error {
	text := strings.TrimSpace(ev.Text)

	switch s.State {
	case StateAwaitingRangeText:
		start, end, err := parseRangeReply(text)
		if err != nil {
			return Validationf("Send a range like 2-5.")
		}
		return e.dispatch(ctx, s, "", func(ctx context.Context, s *Session) error {
			return e.dispatchSplitRange(s, start, end)
		})

	case StateAwaitingStepText:
		step, err := strconv.Atoi(text)
		if err != nil || step < 1 {
			return Validationf("Send a whole number of pages, 1 or more.")
		}
		return e.dispatch(ctx, s, "", func(ctx context.Context, s *Session) error {
			return e.dispatchSplitEvery(s, step)
		})

	case StateAwaitingOrganizeIndices:
		return e.dispatch(ctx, s, "", func(ctx context.Context, s *Session) error {
			return e.dispatchOrganize(s, text)
		})

	case StateAwaitingQrText:
		if text == "" {
			return Validationf("Send some text to encode.")
		}
		return e.dispatch(ctx, s, "", func(ctx context.Context, s *Session) error {
			return e.dispatchQrEncode(s, text)
		})

	default:
		e.say(s.ChatID, msgIdleHint)
		return nil
	}
}

// parseRangeReply parses "start-end" with both ends required.
func parseRangeReply(s string) (int, int, error) {
	left, right, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, fmt.Errorf("not a range")
	}
	start, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// saveUpload writes the upload to scratch storage and tracks it. Nothing is
// written for rejected uploads; callers validate before calling.
func (e *Engine) saveUpload(s *Session, ev FileUpload) (ledger.FileRef, error) {
	path := e.ledger.NewPath(strings.ToLower(filepath.Ext(ev.Name)))
	if err := os.WriteFile(path, ev.Data, 0o644); err != nil {
		return ledger.FileRef{}, &ResourceError{Op: "store upload", Err: err}
	}

	ref := e.ledger.Track(s.ChatID, path, ledger.KindUpload)
	s.Files = append(s.Files, ref)
	e.record(s, "upload", string(s.Kind), ev.Name)
	return ref, nil
}

// fail maps an error to the user-facing outcome. Validation holds state;
// everything else is terminal.
func (e *Engine) fail(s *Session, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		metrics.RecordValidationError()
		e.say(s.ChatID, verr.Message)
		return
	}

	if errors.Is(err, codec.ErrNoQRCode) {
		e.say(s.ChatID, msgNoQRCode)
		e.reset(s)
		return
	}

	var cerr *CodecError
	if errors.As(err, &cerr) {
		e.logger.Error().Err(err).Int64("chat_id", s.ChatID).Str("workflow", string(s.Kind)).Msg("Transformation failed")
		e.say(s.ChatID, msgTransformFailed)
		e.reset(s)
		return
	}

	e.logger.Error().Err(err).Int64("chat_id", s.ChatID).Str("workflow", string(s.Kind)).Msg("Workflow failed")
	e.say(s.ChatID, msgInternalError)
	e.reset(s)
}

// reset is the terminal transition: release every session file, return to
// idle, and drop the session from the store so long-lived processes don't
// keep an entry per chat ever seen.
func (e *Engine) reset(s *Session) {
	e.ledger.ReleaseAll(s.ChatID)
	s.State = StateIdle
	s.Kind = ""
	s.OrganizeMode = ""
	s.Files = nil
	e.store.Remove(s.ChatID)
}

func (e *Engine) say(chatID int64, text string) {
	if err := e.responder.SendText(chatID, text); err != nil {
		e.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (e *Engine) record(s *Session, action, detail, fileName string) {
	if e.sink != nil {
		e.sink.Action(s.ChatID, action, detail, fileName)
	}
}

func hasExt(name string, exts ...string) bool {
	got := strings.ToLower(filepath.Ext(name))
	for _, ext := range exts {
		if got == ext {
			return true
		}
	}
	return false
}
