package codec

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DocxCodec implements Docx with a minimal OOXML reader and writer. Only
// plain paragraphs are produced and consumed; styling in incoming documents
// is ignored.
type DocxCodec struct {
	logger zerolog.Logger
}

// NewDocxCodec creates the DOCX codec.
func NewDocxCodec(logger zerolog.Logger) *DocxCodec {
	return &DocxCodec{
		logger: logger.With().Str("component", "docx").Logger(),
	}
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Create writes text to out as a DOCX document, one paragraph per input
// line. Blank lines become empty paragraphs.
func (d *DocxCodec) Create(out, text string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)

	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", buildDocumentXML(text)},
	}
	for _, part := range parts {
		entry, err := w.Create(part.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", part.name, err)
		}
		if _, err := io.WriteString(entry, part.body); err != nil {
			return fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}

	d.logger.Debug().Str("out", out).Msg("DOCX created")
	return nil
}

func buildDocumentXML(text string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		xml.EscapeText(&sb, []byte(line))
		sb.WriteString(`</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

// ExtractText returns the document's text, one line per paragraph.
func (d *DocxCodec) ExtractText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document body: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}

	return "", fmt.Errorf("document has no word/document.xml part")
}

// parseDocumentXML streams the body, collecting run text and inserting a
// line break at each paragraph end.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines   []string
		current strings.Builder
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				lines = append(lines, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}
