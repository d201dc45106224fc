// Package codec implements the external transformation boundary: PDF
// read/write, image conversion, QR encode/decode, handwriting rendering,
// DOCX extraction/assembly, and background removal. The workflow engine only
// sees the interfaces below; every implementation is swappable in tests.
package codec

import (
	"context"
	"errors"
	"image"

	"github.com/h2200080115/telegram-bot/pkg/layout"
	"github.com/h2200080115/telegram-bot/pkg/pageset"
)

// ErrNoQRCode indicates an image in which no QR code could be located.
var ErrNoQRCode = errors.New("no QR code found in image")

// Document reads and writes paged documents.
type Document interface {
	// PageCount returns the number of pages in the document at path.
	PageCount(path string) (int, error)

	// WritePages writes the given pages of src to out, in the given order.
	// Duplicate indices are legal and produce duplicate pages.
	WritePages(src, out string, pages pageset.Pages) error

	// Merge concatenates the inputs into out, in argument order.
	Merge(out string, in ...string) error

	// AssemblePDF composes page images into a multi-page PDF, one image per
	// page, in slice order.
	AssemblePDF(out string, images []string) error

	// ExtractText returns the plain text of the document, page by page.
	ExtractText(path string) (string, error)
}

// Raster converts one image file into another format. The target format is
// taken from the output path's extension.
type Raster interface {
	Convert(src, out string) error
}

// Renderer turns layout pages into page images using a concrete font.
type Renderer interface {
	// Measure returns the pixel-width measurer for the active font, for use
	// by the layout engine.
	Measure() layout.Measurer

	// RenderPage draws one page of pre-wrapped lines.
	RenderPage(page layout.Page, geo layout.Geometry) (image.Image, error)
}

// QR encodes text into a QR image and decodes QR images back to text.
type QR interface {
	Encode(text string) ([]byte, error)
	Decode(data []byte) (string, error)
}

// Docx builds and reads DOCX files.
type Docx interface {
	Create(out, text string) error
	ExtractText(path string) (string, error)
}

// BackgroundRemover strips the background from an image. Implementations are
// slow, fallible remote or local services; callers must treat every call as
// long-running.
type BackgroundRemover interface {
	Remove(ctx context.Context, img []byte) ([]byte, error)
}

// Codecs bundles every codec the dispatcher needs.
type Codecs struct {
	Document Document
	Raster   Raster
	Renderer Renderer
	QR       QR
	Docx     Docx
	Remover  BackgroundRemover
}
