package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// minImageBytes rejects placeholder images served for missing photos
	minImageBytes = 1000
	maxImageBytes = 10 << 20
)

// ErrNoPhoto is returned when a product has no usable photo
var ErrNoPhoto = errors.New("no product photo")

// Fetcher retrieves product package photos referenced by product databases
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads the image at url
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrNoPhoto
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ShelfSense/0.1")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: unexpected content type %s", ErrNoPhoto, ct)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(imageData) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	// If image is too small, it's probably a placeholder
	if len(imageData) < minImageBytes {
		return nil, fmt.Errorf("%w: image too small (likely placeholder), size: %d bytes", ErrNoPhoto, len(imageData))
	}

	slog.Debug("Downloaded product photo", "url", url, "bytes", len(imageData))
	return imageData, nil
}

// Save writes a downloaded photo to dir as <barcode>_front.jpg
func Save(dir, barcode string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_front.jpg", barcode))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return path, nil
}
