package gtfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Downloader fetches the route archive with conditional requests.
type Downloader struct {
	client *http.Client
	url    string
	dir    string // where the temp archive is written; empty means os.TempDir
	logger zerolog.Logger
}

// NewDownloader creates a Downloader for the given archive URL. Each request
// is bounded by timeout.
func NewDownloader(url, dir string, timeout time.Duration, logger zerolog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		url:    url,
		dir:    dir,
		logger: logger,
	}
}

// CheckResult holds the result of a conditional check.
type CheckResult struct {
	NeedsUpdate  bool
	LastModified string
	ETag         string
}

// Check sends a HEAD request with the stored validators to see if the
// archive has changed.
func (d *Downloader) Check(ctx context.Context, lastModified, etag string) (*CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &CheckResult{NeedsUpdate: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD unexpected status: %d", resp.StatusCode)
	}

	newModified := resp.Header.Get("Last-Modified")
	newETag := resp.Header.Get("ETag")
	// Servers that ignore conditional headers still echo the same validators.
	if (etag != "" && newETag == etag) || (etag == "" && lastModified != "" && newModified == lastModified) {
		return &CheckResult{NeedsUpdate: false}, nil
	}

	return &CheckResult{
		NeedsUpdate:  true,
		LastModified: newModified,
		ETag:         newETag,
	}, nil
}

// Download fetches the archive and saves it to a temp file. The caller owns
// the returned path and must remove it.
func (d *Downloader) Download(ctx context.Context) (path string, lastModified string, etag string, err error) {
	dir := d.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", "", fmt.Errorf("create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return "", "", "", fmt.Errorf("create request: %w", err)
	}

	d.logger.Info().Str("url", d.url).Msg("downloading route archive")
	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", "", fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(dir, "routes-*.zip")
	if err != nil {
		return "", "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", "", "", fmt.Errorf("write file: %w", err)
	}

	path = tmpFile.Name()
	lastModified = resp.Header.Get("Last-Modified")
	etag = resp.Header.Get("ETag")

	d.logger.Info().
		Str("path", filepath.Base(path)).
		Str("size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024))).
		Msg("route archive downloaded")
	return path, lastModified, etag, nil
}
