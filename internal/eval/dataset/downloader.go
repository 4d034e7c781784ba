package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultCacheDir holds downloaded datasets
const DefaultCacheDir = "~/.cache/shelfsense/datasets"

// DownloadConfig configures dataset downloading
type DownloadConfig struct {
	CacheDir      string
	ForceDownload bool
	Token         string // bearer token for private dataset hosts
	Client        *http.Client
}

// Downloader fetches remote datasets into a local cache
type Downloader struct {
	config DownloadConfig
}

// NewDownloader creates a new dataset downloader
func NewDownloader(config DownloadConfig) *Downloader {
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}
	if strings.HasPrefix(config.CacheDir, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			config.CacheDir = filepath.Join(homeDir, config.CacheDir[1:])
		}
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	return &Downloader{config: config}
}

// IsRemote reports whether location is an http(s) URL
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Resolve returns a local path for location, downloading it first when it
// is a URL. Cached downloads are reused unless ForceDownload is set.
func (d *Downloader) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid dataset URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("dataset URL has no file name: %s", location)
	}

	if err := os.MkdirAll(d.config.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	cachedPath := filepath.Join(d.config.CacheDir, name)

	if !d.config.ForceDownload {
		if _, err := os.Stat(cachedPath); err == nil {
			slog.Info("Using cached dataset", "path", cachedPath)
			return cachedPath, nil
		}
	}

	slog.Info("Downloading dataset", "url", location)
	if err := d.downloadFile(ctx, location, cachedPath); err != nil {
		return "", fmt.Errorf("failed to download dataset: %w", err)
	}
	slog.Info("Dataset downloaded successfully", "path", cachedPath)
	return cachedPath, nil
}

func (d *Downloader) downloadFile(ctx context.Context, location, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if d.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.Token)
	}

	resp, err := d.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}
	slog.Debug("Download complete", "bytes", written)

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}
