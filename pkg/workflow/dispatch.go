package workflow

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/h2200080115/telegram-bot/internal/metrics"
	"github.com/h2200080115/telegram-bot/pkg/codec"
	"github.com/h2200080115/telegram-bot/pkg/layout"
	"github.com/h2200080115/telegram-bot/pkg/ledger"
	"github.com/h2200080115/telegram-bot/pkg/pageset"
)

// bundleThreshold is the chunk count above which split-every outputs are
// packaged into one archive instead of sent individually.
const bundleThreshold = 5

type dispatchFn func(ctx context.Context, s *Session) error

// dispatch runs one transformation at most once. The session is marked
// processing for the duration so concurrent events are rejected, success is
// always terminal, and errors propagate to fail for classification.
func (e *Engine) dispatch(ctx context.Context, s *Session, fileName string, fn dispatchFn) error {
	e.store.SetProcessing(s.ChatID, true)
	start := time.Now()
	err := fn(ctx, s)
	e.store.SetProcessing(s.ChatID, false)

	metrics.RecordTransformation(string(s.Kind), time.Since(start), err == nil)
	e.record(s, "transform", string(s.Kind), fileName)

	if err != nil {
		return err
	}
	e.reset(s)
	return nil
}

// dispatchUpload runs a dispatch whose input was saved by the same event. A
// validation failure rolls the upload back out of the session, so the held
// state sees exactly what it saw before the event and a retry starts clean.
func (e *Engine) dispatchUpload(ctx context.Context, s *Session, fileName string, fn dispatchFn) error {
	err := e.dispatch(ctx, s, fileName, fn)

	var verr *ValidationError
	if errors.As(err, &verr) {
		e.dropLastUpload(s)
	}
	return err
}

// dropLastUpload removes the most recently collected file from the session
// and deletes its storage.
func (e *Engine) dropLastUpload(s *Session) {
	if len(s.Files) == 0 {
		return
	}
	last := s.Files[len(s.Files)-1]
	s.Files = s.Files[:len(s.Files)-1]
	e.ledger.ReleaseOne(last.Path)
}

// srcPath returns the first collected file, the source of every
// single-upload workflow.
func (e *Engine) srcPath(s *Session) (string, error) {
	if len(s.Files) == 0 {
		return "", &ResourceError{Op: "dispatch", Err: fmt.Errorf("no collected files for %s", s.Kind)}
	}
	return s.Files[0].Path, nil
}

// newOutput allocates a tracked output path.
func (e *Engine) newOutput(s *Session, ext string) string {
	path := e.ledger.NewPath(ext)
	e.ledger.Track(s.ChatID, path, ledger.KindOutput)
	return path
}

func (e *Engine) sendDocument(s *Session, path, caption string) error {
	if err := e.responder.SendDocument(s.ChatID, path, caption); err != nil {
		return &ResourceError{Op: "send document", Err: err}
	}
	return nil
}

func (e *Engine) dispatchSplitRange(s *Session, start, end int) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	n, err := e.codecs.Document.PageCount(src)
	if err != nil {
		return &CodecError{Op: "page count", Err: err}
	}

	pages, err := pageset.Range(n, start, end)
	if err != nil {
		return Validationf("Valid pages are 1-%d. Send a range like 2-5.", n)
	}

	out := e.newOutput(s, ".pdf")
	if err := e.codecs.Document.WritePages(src, out, pages); err != nil {
		return &CodecError{Op: "split", Err: err}
	}

	return e.sendDocument(s, out, fmt.Sprintf("Pages %d-%d", start, end))
}

func (e *Engine) dispatchSplitEvery(s *Session, step int) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	n, err := e.codecs.Document.PageCount(src)
	if err != nil {
		return &CodecError{Op: "page count", Err: err}
	}

	chunks, err := pageset.EveryK(n, step)
	if err != nil {
		return Validationf("Send a whole number of pages, 1 or more.")
	}

	type part struct {
		path    string
		caption string
	}
	parts := make([]part, 0, len(chunks))
	for _, chunk := range chunks {
		out := e.newOutput(s, ".pdf")
		if err := e.codecs.Document.WritePages(src, out, chunk); err != nil {
			return &CodecError{Op: "split", Err: err}
		}
		parts = append(parts, part{
			path:    out,
			caption: fmt.Sprintf("Pages %d-%d", chunk[0], chunk[len(chunk)-1]),
		})
	}

	if len(parts) > bundleThreshold {
		archive := e.newOutput(s, ".zip")
		names := make([]string, len(parts))
		paths := make([]string, len(parts))
		for i, p := range parts {
			names[i] = fmt.Sprintf("part_%02d.pdf", i+1)
			paths[i] = p.path
		}
		if err := buildZip(archive, paths, names); err != nil {
			return &ResourceError{Op: "bundle parts", Err: err}
		}
		return e.sendDocument(s, archive, fmt.Sprintf("%d parts", len(parts)))
	}

	for _, p := range parts {
		if err := e.sendDocument(s, p.path, p.caption); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dispatchOrganize(s *Session, text string) error {
	indices, err := pageset.Parse(text)
	if err != nil {
		return Validationf("Could not read that. Send pages like 2,4 or 1-3.")
	}

	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	n, err := e.codecs.Document.PageCount(src)
	if err != nil {
		return &CodecError{Op: "page count", Err: err}
	}

	var (
		pages   pageset.Pages
		caption string
	)
	switch s.OrganizeMode {
	case OrganizeRemove:
		pages, err = pageset.Remove(n, indices)
		caption = "Pages removed"
	case OrganizeReorder:
		pages, err = pageset.Keep(n, indices)
		caption = "Pages reordered"
	case OrganizeExtract:
		pages, err = pageset.Keep(n, indices)
		caption = "Pages extracted"
	default:
		return &ResourceError{Op: "organize", Err: fmt.Errorf("no mode selected")}
	}
	if errors.Is(err, pageset.ErrEmptyResult) {
		return Validationf("That would leave no pages. The document has %d pages.", n)
	}
	if err != nil {
		return Validationf("Valid pages are 1-%d.", n)
	}

	out := e.newOutput(s, ".pdf")
	if err := e.codecs.Document.WritePages(src, out, pages); err != nil {
		return &CodecError{Op: "organize", Err: err}
	}

	return e.sendDocument(s, out, caption)
}

func (e *Engine) dispatchMerge(ctx context.Context, s *Session) error {
	if len(s.Files) < 2 {
		return &ResourceError{Op: "merge", Err: fmt.Errorf("expected two collected files, have %d", len(s.Files))}
	}

	// Merge order is upload order: first received comes first.
	first := s.Files[0].Path
	second := s.Files[1].Path

	out := e.newOutput(s, ".pdf")
	if err := e.codecs.Document.Merge(out, first, second); err != nil {
		return &CodecError{Op: "merge", Err: err}
	}

	return e.sendDocument(s, out, "Merged PDF")
}

func (e *Engine) dispatchHandwritten(ctx context.Context, s *Session) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return &ResourceError{Op: "read text file", Err: err}
	}

	return e.renderTextToPDF(s, string(data), "Rendered PDF")
}

func (e *Engine) dispatchWordToPDF(ctx context.Context, s *Session) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	text, err := e.codecs.Docx.ExtractText(src)
	if err != nil {
		return &CodecError{Op: "read document", Err: err}
	}

	return e.renderTextToPDF(s, text, "Converted PDF")
}

// renderTextToPDF is the shared text pipeline: wrap, paginate, render each
// page to an image, assemble the images into one PDF.
func (e *Engine) renderTextToPDF(s *Session, text, caption string) error {
	if strings.TrimSpace(text) == "" {
		return Validationf("There is no text to render.")
	}

	lines := layout.Wrap(text, e.codecs.Renderer.Measure(), e.geo.MaxLineWidth())
	pages := layout.Paginate(lines, e.geo.LinesPerPage)

	images := make([]string, 0, len(pages))
	for _, page := range pages {
		img, err := e.codecs.Renderer.RenderPage(page, e.geo)
		if err != nil {
			return &CodecError{Op: "render page", Err: err}
		}

		path := e.ledger.NewPath(".png")
		e.ledger.Track(s.ChatID, path, ledger.KindIntermediate)

		f, err := os.Create(path)
		if err != nil {
			return &ResourceError{Op: "write page image", Err: err}
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return &ResourceError{Op: "write page image", Err: err}
		}
		if err := f.Close(); err != nil {
			return &ResourceError{Op: "write page image", Err: err}
		}
		images = append(images, path)
	}

	out := e.newOutput(s, ".pdf")
	if err := e.codecs.Document.AssemblePDF(out, images); err != nil {
		return &CodecError{Op: "assemble pdf", Err: err}
	}

	return e.sendDocument(s, out, caption)
}

func (e *Engine) dispatchPDFToWord(ctx context.Context, s *Session) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	text, err := e.codecs.Document.ExtractText(src)
	if err != nil {
		return &CodecError{Op: "extract text", Err: err}
	}

	out := e.newOutput(s, ".docx")
	if err := e.codecs.Docx.Create(out, text); err != nil {
		return &CodecError{Op: "create document", Err: err}
	}

	return e.sendDocument(s, out, "Word document")
}

func (e *Engine) dispatchImageConvert(s *Session, targetExt string) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	out := e.newOutput(s, targetExt)
	if err := e.codecs.Raster.Convert(src, out); err != nil {
		return &CodecError{Op: "convert image", Err: err}
	}

	return e.sendDocument(s, out, "Converted image")
}

func (e *Engine) dispatchRemoveBackground(ctx context.Context, s *Session) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return &ResourceError{Op: "read image", Err: err}
	}

	result, err := e.codecs.Remover.Remove(ctx, data)
	if err != nil {
		return &CodecError{Op: "remove background", Err: err}
	}

	out := e.newOutput(s, ".png")
	if err := os.WriteFile(out, result, 0o644); err != nil {
		return &ResourceError{Op: "write image", Err: err}
	}

	return e.sendDocument(s, out, "Background removed")
}

func (e *Engine) dispatchReadQR(ctx context.Context, s *Session) error {
	src, err := e.srcPath(s)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return &ResourceError{Op: "read image", Err: err}
	}

	text, err := e.codecs.QR.Decode(data)
	if errors.Is(err, codec.ErrNoQRCode) {
		return err
	}
	if err != nil {
		return &CodecError{Op: "decode qr", Err: err}
	}

	e.say(s.ChatID, text)
	return nil
}

func (e *Engine) dispatchQrEncode(s *Session, text string) error {
	data, err := e.codecs.QR.Encode(text)
	if err != nil {
		return &CodecError{Op: "encode qr", Err: err}
	}

	if err := e.responder.SendPhoto(s.ChatID, data, ""); err != nil {
		return &ResourceError{Op: "send photo", Err: err}
	}
	return nil
}

// buildZip writes the files at paths into a zip archive under the given
// entry names.
func buildZip(out string, paths, names []string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for i, path := range paths {
		entry, err := zw.Create(names[i])
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}
	return zw.Close()
}
