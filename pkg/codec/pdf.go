package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/h2200080115/telegram-bot/pkg/pageset"
)

// PDF implements Document. Reads go through MuPDF (go-fitz); mutations go
// through pdfcpu, which supports arbitrary page collection including
// duplicates.
type PDF struct {
	logger zerolog.Logger
}

// NewPDF creates the PDF document codec.
func NewPDF(logger zerolog.Logger) *PDF {
	return &PDF{
		logger: logger.With().Str("component", "pdf").Logger(),
	}
}

// PageCount returns the number of pages in the PDF at path.
func (p *PDF) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return n, nil
}

// WritePages writes the given pages of src to out, in caller order,
// duplicates preserved.
func (p *PDF) WritePages(src, out string, pages pageset.Pages) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages selected")
	}

	selected := make([]string, len(pages))
	for i, n := range pages {
		selected[i] = strconv.Itoa(n)
	}

	if err := api.CollectFile(src, out, selected, nil); err != nil {
		return fmt.Errorf("failed to write pages: %w", err)
	}

	p.logger.Debug().
		Str("src", src).
		Str("out", out).
		Int("pages", len(pages)).
		Msg("Pages written")

	return nil
}

// Merge concatenates the inputs into out, in argument order. Every input
// must be a valid PDF with at least one page.
func (p *PDF) Merge(out string, in ...string) error {
	if len(in) < 2 {
		return fmt.Errorf("merge requires at least two inputs, got %d", len(in))
	}

	for _, path := range in {
		n, err := p.PageCount(path)
		if err != nil {
			return fmt.Errorf("invalid merge input %s: %w", path, err)
		}
		if n == 0 {
			return fmt.Errorf("merge input %s has no pages", path)
		}
	}

	if err := api.MergeCreateFile(in, out, false, nil); err != nil {
		return fmt.Errorf("failed to merge PDFs: %w", err)
	}

	p.logger.Debug().
		Strs("inputs", in).
		Str("out", out).
		Msg("PDFs merged")

	return nil
}

// AssemblePDF composes page images into a multi-page PDF, one image per
// page, in slice order.
func (p *PDF) AssemblePDF(out string, images []string) error {
	if len(images) == 0 {
		return fmt.Errorf("no page images to assemble")
	}

	if err := api.ImportImagesFile(images, out, nil, nil); err != nil {
		return fmt.Errorf("failed to assemble PDF: %w", err)
	}

	p.logger.Debug().
		Int("pages", len(images)).
		Str("out", out).
		Msg("PDF assembled")

	return nil
}

// ExtractText returns the plain text of the document, pages separated by a
// blank line.
func (p *PDF) ExtractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}
