package codec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 512

// QRCodec implements QR using go-qrcode for generation and gozxing for
// detection.
type QRCodec struct {
	logger zerolog.Logger
	reader gozxing.Reader
}

// NewQRCodec creates the QR codec.
func NewQRCodec(logger zerolog.Logger) *QRCodec {
	return &QRCodec{
		logger: logger.With().Str("component", "qr").Logger(),
		reader: zxqr.NewQRCodeReader(),
	}
}

// Encode renders text as a PNG QR image.
func (q *QRCodec) Encode(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot encode empty text")
	}

	data, err := qrcode.Encode(text, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return data, nil
}

// Decode locates a QR code in an encoded image and returns its payload.
// Images without a detectable QR code return ErrNoQRCode.
func (q *QRCodec) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image for detection: %w", err)
	}

	result, err := q.reader.Decode(bmp, nil)
	if err != nil {
		// gozxing reports NotFound/Checksum/Format exceptions; all of them
		// mean the image carries no readable code.
		q.logger.Debug().Err(err).Msg("No QR code detected")
		return "", ErrNoQRCode
	}

	return result.GetText(), nil
}
