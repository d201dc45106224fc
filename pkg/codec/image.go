package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Image implements Raster on top of the standard decoders. The target format
// comes from the output path's extension; JPEG output is flattened onto white
// because JPEG has no alpha channel.
type Image struct {
	logger  zerolog.Logger
	quality int
}

// NewImage creates the raster codec.
func NewImage(logger zerolog.Logger) *Image {
	return &Image{
		logger:  logger.With().Str("component", "image").Logger(),
		quality: 90,
	}
}

// Convert reads the image at src and writes it to out in the format named by
// out's extension. Supported targets are .png and .jpg/.jpeg.
func (c *Image) Convert(src, out string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer dst.Close()

	switch ext := strings.ToLower(filepath.Ext(out)); ext {
	case ".png":
		err = png.Encode(dst, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(dst, flatten(img), &jpeg.Options{Quality: c.quality})
	default:
		return fmt.Errorf("unsupported target format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	c.logger.Debug().
		Str("from", format).
		Str("to", filepath.Ext(out)).
		Msg("Image converted")

	return nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
