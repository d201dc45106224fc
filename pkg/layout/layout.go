// Package layout word-wraps raw text against a pixel-width budget and chunks
// the wrapped lines into fixed-capacity pages. Wrapping and pagination are
// separate phases on purpose: wrapping knows nothing about page size, and
// pagination knows nothing about fonts.
package layout

import "strings"

// Measurer reports the rendered pixel width of a string for the active font.
type Measurer func(s string) int

// Page is an ordered sequence of pre-wrapped text lines.
type Page []string

// Geometry describes the fixed page layout used by the renderer.
type Geometry struct {
	PageWidth    int
	PageHeight   int
	Margin       int
	LineHeight   int
	FontSize     int
	LinesPerPage int
}

// DefaultGeometry is the reference A4-ish sizing: 595x842 points, 50pt
// margin, 30pt line height, 25 lines per page.
func DefaultGeometry() Geometry {
	return Geometry{
		PageWidth:    595,
		PageHeight:   842,
		Margin:       50,
		LineHeight:   30,
		FontSize:     20,
		LinesPerPage: 25,
	}
}

// MaxLineWidth is the horizontal budget available to a wrapped line.
func (g Geometry) MaxLineWidth() int {
	return g.PageWidth - 2*g.Margin
}

// Wrap splits text into source lines at line breaks and greedily word-wraps
// each non-blank line to maxWidth. A blank source line yields exactly one
// empty output line. A single word wider than maxWidth still occupies one
// line alone; words are never broken mid-word.
func Wrap(text string, measure Measurer, maxWidth int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, wrapLine(line, measure, maxWidth)...)
	}
	return out
}

// wrapLine wraps a single non-blank source line. Width accounting includes
// one trailing space per word, matching the renderer's spacing.
func wrapLine(line string, measure Measurer, maxWidth int) []string {
	var (
		lines   []string
		current []string
		width   int
	)

	for _, word := range strings.Fields(line) {
		wordWidth := measure(word + " ")
		if len(current) > 0 && width+wordWidth > maxWidth {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
			width = 0
		}
		current = append(current, word)
		width += wordWidth
	}

	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

// Paginate chunks wrapped lines into pages of perPage lines each. The last
// page may be partial. Pagination never re-wraps.
func Paginate(lines []string, perPage int) []Page {
	if perPage < 1 || len(lines) == 0 {
		return nil
	}

	pages := make([]Page, 0, (len(lines)+perPage-1)/perPage)
	for start := 0; start < len(lines); start += perPage {
		end := start + perPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, Page(lines[start:end]))
	}
	return pages
}
