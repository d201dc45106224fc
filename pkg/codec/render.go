package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/h2200080115/telegram-bot/pkg/layout"
)

// FontRenderer implements Renderer with an OpenType face loaded from disk.
// The font file is watched so operators can swap the handwriting font without
// restarting; the active face is guarded because font.Face is not safe for
// concurrent use.
type FontRenderer struct {
	path   string
	size   float64
	logger zerolog.Logger

	mu   sync.Mutex
	face font.Face

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFontRenderer loads the font at path at the given point size.
func NewFontRenderer(path string, size float64, logger zerolog.Logger) (*FontRenderer, error) {
	r := &FontRenderer{
		path:   path,
		size:   size,
		logger: logger.With().Str("component", "renderer").Logger(),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch starts reloading the face whenever the font file changes on disk.
// The parent directory is watched so editor-style replace-by-rename is seen.
func (r *FontRenderer) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create font watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch font directory: %w", err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != r.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := r.reload(); err != nil {
					r.logger.Warn().Err(err).Msg("Font reload failed, keeping previous face")
					continue
				}
				r.logger.Info().Str("path", r.path).Msg("Font reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn().Err(err).Msg("Font watcher error")
			case <-r.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running.
func (r *FontRenderer) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}

func (r *FontRenderer) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read font file: %w", err)
	}

	fnt, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    r.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}

	r.mu.Lock()
	old := r.face
	r.face = face
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Measure returns a pixel-width measurer bound to the active face.
func (r *FontRenderer) Measure() layout.Measurer {
	return func(s string) int {
		r.mu.Lock()
		defer r.mu.Unlock()
		return font.MeasureString(r.face, s).Ceil()
	}
}

// RenderPage draws one page of pre-wrapped lines onto a white canvas, one
// line per baseline step starting below the top margin.
func (r *FontRenderer) RenderPage(page layout.Page, geo layout.Geometry) (image.Image, error) {
	if len(page) > geo.LinesPerPage {
		return nil, fmt.Errorf("page holds %d lines, capacity is %d", len(page), geo.LinesPerPage)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, geo.PageWidth, geo.PageHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	r.mu.Lock()
	defer r.mu.Unlock()

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: r.face,
	}
	for i, line := range page {
		if line == "" {
			continue
		}
		drawer.Dot = fixed.P(geo.Margin, geo.Margin+(i+1)*geo.LineHeight)
		drawer.DrawString(line)
	}

	return canvas, nil
}
