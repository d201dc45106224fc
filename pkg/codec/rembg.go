package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Rembg implements BackgroundRemover against a rembg-compatible HTTP
// service. Calls are slow; the context bounds each request and the client
// carries its own ceiling in case the caller forgets one.
type Rembg struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewRembg creates a remover talking to the service at baseURL.
func NewRembg(baseURL string, logger zerolog.Logger) *Rembg {
	return &Rembg{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger.With().Str("component", "rembg").Logger(),
	}
}

// Remove sends the encoded image to the service and returns the PNG result
// with the background stripped.
func (r *Rembg) Remove(ctx context.Context, img []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "input.png")
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/remove", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("background removal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("background removal service returned %d: %s", resp.StatusCode, snippet)
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read service response: %w", err)
	}

	r.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(result)).
		Msg("Background removed")

	return result, nil
}
