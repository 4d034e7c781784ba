package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
)

var downloadClient = &http.Client{Timeout: 15 * time.Second}

// downloadImage fetches a remote photo, e.g. a product image URL, and
// checks that it decodes
func downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image_url: %v", errBadRequest, err)
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: failed to download image: HTTP %d", errBadRequest, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) >= maxUploadSize {
		return nil, fmt.Errorf("%w: image too large (max 10MB)", errBadRequest)
	}

	img, format, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	b := img.Bounds()
	slog.Info("Image downloaded", "url", imageURL, "format", format, "width", b.Dx(), "height", b.Dy())
	return data, nil
}
