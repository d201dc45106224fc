package workflow

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2200080115/telegram-bot/pkg/codec"
	"github.com/h2200080115/telegram-bot/pkg/layout"
	"github.com/h2200080115/telegram-bot/pkg/ledger"
	"github.com/h2200080115/telegram-bot/pkg/pageset"
)

type sentDoc struct {
	chatID  int64
	path    string
	caption string
	content []byte
}

type fakeResponder struct {
	mu     sync.Mutex
	texts  []string
	docs   []sentDoc
	photos int
}

func (r *fakeResponder) SendText(chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *fakeResponder) SendChoices(chatID int64, text string, choices []Choice) error {
	return r.SendText(chatID, text)
}

func (r *fakeResponder) SendDocument(chatID int64, path, caption string) error {
	// Capture the bytes now: the engine releases the file right after sending.
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, sentDoc{chatID: chatID, path: path, caption: caption, content: content})
	return nil
}

func (r *fakeResponder) SendPhoto(chatID int64, photo []byte, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos++
	return nil
}

func (r *fakeResponder) lastText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func (r *fakeResponder) sentDocs() []sentDoc {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentDoc, len(r.docs))
	copy(out, r.docs)
	return out
}

type fakeDocument struct {
	pages int

	mu      sync.Mutex
	written []pageset.Pages
}

func (d *fakeDocument) PageCount(path string) (int, error) {
	return d.pages, nil
}

func (d *fakeDocument) WritePages(src, out string, pages pageset.Pages) error {
	d.mu.Lock()
	d.written = append(d.written, append(pageset.Pages(nil), pages...))
	d.mu.Unlock()
	return os.WriteFile(out, []byte(fmt.Sprint(pages)), 0o644)
}

func (d *fakeDocument) Merge(out string, in ...string) error {
	var parts []string
	for _, path := range in {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	return os.WriteFile(out, []byte(strings.Join(parts, "|")), 0o644)
}

func (d *fakeDocument) AssemblePDF(out string, images []string) error {
	return os.WriteFile(out, []byte(fmt.Sprintf("pdf with %d pages", len(images))), 0o644)
}

func (d *fakeDocument) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func (d *fakeDocument) lastWritten() pageset.Pages {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.written) == 0 {
		return nil
	}
	return d.written[len(d.written)-1]
}

type fakeRaster struct{}

func (fakeRaster) Convert(src, out string) error {
	return os.WriteFile(out, []byte("converted"), 0o644)
}

type fakeRenderer struct{}

func (fakeRenderer) Measure() layout.Measurer {
	return func(s string) int { return len(s) * 10 }
}

func (fakeRenderer) RenderPage(page layout.Page, geo layout.Geometry) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type fakeQR struct{}

func (fakeQR) Encode(text string) ([]byte, error) {
	return []byte("qr:" + text), nil
}

func (fakeQR) Decode(data []byte) (string, error) {
	s := string(data)
	if !strings.HasPrefix(s, "qr:") {
		return "", codec.ErrNoQRCode
	}
	return strings.TrimPrefix(s, "qr:"), nil
}

type fakeDocx struct{}

func (fakeDocx) Create(out, text string) error {
	return os.WriteFile(out, []byte(text), 0o644)
}

func (fakeDocx) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

type blockingRemover struct {
	release chan struct{}
	started chan struct{}
}

func (r *blockingRemover) Remove(ctx context.Context, img []byte) ([]byte, error) {
	close(r.started)
	<-r.release
	return img, nil
}

type testRig struct {
	engine    *Engine
	store     *Store
	ledger    *ledger.Ledger
	responder *fakeResponder
	document  *fakeDocument
	remover   *blockingRemover
}

func newTestRig(t *testing.T, pages int) *testRig {
	t.Helper()

	led, err := ledger.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	store := NewStore()
	responder := &fakeResponder{}
	document := &fakeDocument{pages: pages}
	remover := &blockingRemover{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}

	codecs := codec.Codecs{
		Document: document,
		Raster:   fakeRaster{},
		Renderer: fakeRenderer{},
		QR:       fakeQR{},
		Docx:     fakeDocx{},
		Remover:  remover,
	}

	engine := NewEngine(store, led, codecs, responder, nil, zerolog.Nop())
	t.Cleanup(func() { engine.Queue().Close() })

	return &testRig{
		engine:    engine,
		store:     store,
		ledger:    led,
		responder: responder,
		document:  document,
		remover:   remover,
	}
}

// step delivers an event and waits until the lane has drained it.
func (r *testRig) step(t *testing.T, ev Event) {
	t.Helper()
	r.engine.Handle(ev)
	require.True(t, r.engine.Queue().Drain(5*time.Second))
}

const chat = int64(42)

func TestSplitRange_EndToEnd(t *testing.T) {
	r := newTestRig(t, 10)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitRange})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	assert.Contains(t, r.responder.lastText(), "10 pages")

	r.step(t, TextReply{ChatID: chat, Text: "2-5"})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "Pages 2-5", docs[0].caption)
	assert.Equal(t, pageset.Pages{2, 3, 4, 5}, r.document.lastWritten())

	// Terminal transition: idle, nothing tracked, nothing left on disk.
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
	assert.Zero(t, r.ledger.Count())
	assert.NoFileExists(t, docs[0].path)
}

func TestSplitRange_InvalidRangeHoldsState(t *testing.T) {
	r := newTestRig(t, 10)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitRange})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, TextReply{ChatID: chat, Text: "9-200"})

	s := r.store.Get(chat)
	assert.Equal(t, StateAwaitingRangeText, s.State)
	assert.Len(t, s.Files, 1, "the upload stays collected")
	assert.Contains(t, r.responder.lastText(), "Valid pages are 1-10")

	// The user can retry with a good range.
	r.step(t, TextReply{ChatID: chat, Text: "1-2"})
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
	assert.Zero(t, r.ledger.Count())
}

func TestSplitEvery_BundlesManyParts(t *testing.T) {
	r := newTestRig(t, 12)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitEvery})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, TextReply{ChatID: chat, Text: "2"})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 1, "six parts go out as one archive")
	assert.Equal(t, ".zip", filepath.Ext(docs[0].path))
	assert.Equal(t, "6 parts", docs[0].caption)
	assert.Zero(t, r.ledger.Count())
}

func TestSplitEvery_FewPartsSentIndividually(t *testing.T) {
	r := newTestRig(t, 6)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitEvery})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, TextReply{ChatID: chat, Text: "2"})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 3)
	assert.Equal(t, "Pages 1-2", docs[0].caption)
	assert.Equal(t, "Pages 5-6", docs[2].caption)
}

func TestMerge_OrderIsUploadOrder(t *testing.T) {
	r := newTestRig(t, 3)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMerge})
	r.step(t, FileUpload{ChatID: chat, Name: "a.pdf", Data: []byte("AAA")})
	assert.Equal(t, StateAwaitingSecondMergeFile, r.store.Get(chat).State)

	r.step(t, FileUpload{ChatID: chat, Name: "b.pdf", Data: []byte("BBB")})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "Merged PDF", docs[0].caption)

	// First upload's pages come first, then the second's; after the terminal
	// transition the output's storage is gone.
	assert.Equal(t, "AAA|BBB", string(docs[0].content))
	assert.NoFileExists(t, docs[0].path)
	assert.Zero(t, r.ledger.Count())
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
}

func TestMerge_NonPDFHoldsState(t *testing.T) {
	r := newTestRig(t, 3)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMerge})
	r.step(t, FileUpload{ChatID: chat, Name: "notes.txt", Data: []byte("nope")})

	s := r.store.Get(chat)
	assert.Equal(t, StateAwaitingFirstMergeFile, s.State)
	assert.Empty(t, s.Files, "rejected upload is never tracked")
	assert.Zero(t, r.ledger.Count())

	// Same rejection in the second phase.
	r.step(t, FileUpload{ChatID: chat, Name: "a.pdf", Data: []byte("AAA")})
	r.step(t, FileUpload{ChatID: chat, Name: "image.png", Data: []byte("nope")})
	assert.Equal(t, StateAwaitingSecondMergeFile, r.store.Get(chat).State)
	assert.Equal(t, 1, r.ledger.Count())
}

func TestOrganizeChoicesCarryRoutableData(t *testing.T) {
	// The transport echoes Choice.Data verbatim, so each payload must carry
	// the organize prefix and decode back to a mode.
	require.Len(t, organizeChoices, 3)
	for _, c := range organizeChoices {
		require.True(t, strings.HasPrefix(c.Data, CallbackOrganizePrefix), "choice %q", c.Data)
		mode := OrganizeMode(strings.TrimPrefix(c.Data, CallbackOrganizePrefix))
		switch mode {
		case OrganizeRemove, OrganizeReorder, OrganizeExtract:
		default:
			t.Fatalf("choice %q does not decode to an organize mode", c.Data)
		}
	}
}

func TestOrganize_ExtractPreservesDuplicates(t *testing.T) {
	r := newTestRig(t, 10)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindOrganize})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	assert.Equal(t, StateAwaitingOrganizeChoice, r.store.Get(chat).State)

	r.step(t, OrganizeChoice{ChatID: chat, Mode: OrganizeExtract})
	r.step(t, TextReply{ChatID: chat, Text: "2,2,5"})

	assert.Equal(t, pageset.Pages{2, 2, 5}, r.document.lastWritten())
	docs := r.responder.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "Pages extracted", docs[0].caption)
	assert.Zero(t, r.ledger.Count())
}

func TestOrganize_RemoveAllPagesRejected(t *testing.T) {
	r := newTestRig(t, 3)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindOrganize})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, OrganizeChoice{ChatID: chat, Mode: OrganizeRemove})
	r.step(t, TextReply{ChatID: chat, Text: "1-3"})

	assert.Contains(t, r.responder.lastText(), "no pages")
	assert.Equal(t, StateAwaitingOrganizeIndices, r.store.Get(chat).State)
}

func TestOrganize_MalformedIndices(t *testing.T) {
	r := newTestRig(t, 10)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindOrganize})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, OrganizeChoice{ChatID: chat, Mode: OrganizeReorder})
	r.step(t, TextReply{ChatID: chat, Text: "3-1"})

	assert.Contains(t, r.responder.lastText(), "Could not read")
	assert.Equal(t, StateAwaitingOrganizeIndices, r.store.Get(chat).State)
}

func TestHandwritten_RendersAndCleansUp(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindHandwritten})
	r.step(t, FileUpload{ChatID: chat, Name: "essay.txt", Data: []byte("hello world\n\nsecond paragraph")})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "Rendered PDF", docs[0].caption)
	assert.Zero(t, r.ledger.Count(), "page images and output are all released")
}

func TestHandwritten_EmptyTextRollsBackUpload(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindHandwritten})
	r.step(t, FileUpload{ChatID: chat, Name: "empty.txt", Data: []byte("   \n\t\n")})

	s := r.store.Get(chat)
	assert.Equal(t, StateAwaitingUpload, s.State, "validation holds the state for a retry")
	assert.Empty(t, s.Files, "the rejected upload must not stay collected")
	assert.Zero(t, r.ledger.Count())
	assert.Contains(t, r.responder.lastText(), "no text")

	// The retry renders from the new upload, not a stale one.
	r.step(t, FileUpload{ChatID: chat, Name: "essay.txt", Data: []byte("hello world")})

	docs := r.responder.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "Rendered PDF", docs[0].caption)
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
	assert.Zero(t, r.ledger.Count())
}

func TestReadQR_NoCodeIsTerminal(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindReadQR})
	r.step(t, FileUpload{ChatID: chat, Name: "photo.png", Data: []byte("just pixels")})

	assert.Equal(t, msgNoQRCode, r.responder.lastText())
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
	assert.Zero(t, r.ledger.Count())
}

func TestReadQR_DecodesText(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindReadQR})
	r.step(t, FileUpload{ChatID: chat, Name: "photo.png", Data: []byte("qr:hello")})

	assert.Equal(t, "hello", r.responder.lastText())
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
}

func TestMakeQR_FromTextAndFromFile(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMakeQR})
	r.step(t, TextReply{ChatID: chat, Text: "hello"})
	assert.Equal(t, 1, r.responder.photos)
	assert.Equal(t, StateIdle, r.store.Get(chat).State)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMakeQR})
	r.step(t, FileUpload{ChatID: chat, Name: "payload.txt", Data: []byte("from a file")})
	assert.Equal(t, 2, r.responder.photos)
	assert.Zero(t, r.ledger.Count())
}

func TestBusySessionRejectsEvents(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindRemoveBackground})
	r.engine.Handle(FileUpload{ChatID: chat, Name: "photo.png", Data: []byte("pixels")})

	select {
	case <-r.remover.started:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch never started")
	}

	r.engine.Handle(TextReply{ChatID: chat, Text: "hello?"})
	assert.Equal(t, msgBusy, r.responder.lastText())

	close(r.remover.release)
	require.True(t, r.engine.Queue().Drain(5*time.Second))
	assert.Equal(t, StateIdle, r.store.Get(chat).State)
}

func TestMenuSelectAbandonsPreviousWorkflow(t *testing.T) {
	r := newTestRig(t, 3)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMerge})
	r.step(t, FileUpload{ChatID: chat, Name: "a.pdf", Data: []byte("AAA")})
	assert.Equal(t, 1, r.ledger.Count())

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitRange})
	assert.Zero(t, r.ledger.Count(), "restarting releases collected files")
	assert.Empty(t, r.store.Get(chat).Files)
}

func TestCancelReleasesEverything(t *testing.T) {
	r := newTestRig(t, 3)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindMerge})
	r.step(t, FileUpload{ChatID: chat, Name: "a.pdf", Data: []byte("AAA")})
	r.step(t, Cancel{ChatID: chat})

	assert.Equal(t, StateIdle, r.store.Get(chat).State)
	assert.Zero(t, r.ledger.Count())
	assert.Equal(t, msgCancelled, r.responder.lastText())
}

func TestTerminalTransitionDropsSession(t *testing.T) {
	r := newTestRig(t, 10)

	r.step(t, MenuSelect{ChatID: chat, Kind: KindSplitRange})
	r.step(t, FileUpload{ChatID: chat, Name: "doc.pdf", Data: []byte("pdf")})
	r.step(t, TextReply{ChatID: chat, Text: "2-5"})

	r.store.mu.RLock()
	_, held := r.store.sessions[chat]
	r.store.mu.RUnlock()
	assert.False(t, held, "finished conversations must not linger in the store")
}

func TestIdleTextGetsHint(t *testing.T) {
	r := newTestRig(t, 1)

	r.step(t, TextReply{ChatID: chat, Text: "hi"})
	assert.Equal(t, msgIdleHint, r.responder.lastText())
}
