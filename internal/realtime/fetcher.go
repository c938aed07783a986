package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"bustrack/internal/tracker"
)

// Format selects how the vehicle feed payload is decoded.
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// maxFeedBytes bounds how much of a feed response is read into memory.
const maxFeedBytes = 64 << 20

// Fetcher fetches the vehicle positions feed. It implements tracker.FeedSource.
type Fetcher struct {
	url    string
	apiKey string
	format Format
	client *http.Client
	logger zerolog.Logger
}

// NewFetcher creates a vehicle feed fetcher. Every request is bounded by timeout.
func NewFetcher(url, apiKey string, format Format, timeout time.Duration, logger zerolog.Logger) *Fetcher {
	if format == "" {
		format = FormatJSON
	}
	return &Fetcher{
		url:    url,
		apiKey: apiKey,
		format: format,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// Fetch retrieves and decodes the feed once.
func (f *Fetcher) Fetch(ctx context.Context) (*tracker.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.url, nil)
	if err != nil {
		return nil, &tracker.TransportError{Source: feedSource, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("x-api-key", f.apiKey)
	req.Header.Set("Cache-Control", "no-cache")
	if f.format == FormatProtobuf {
		req.Header.Set("Accept", "application/x-protobuf")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &tracker.TransportError{Source: feedSource, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &tracker.TransportError{Source: feedSource, Err: fmt.Errorf("read body: %w", err)}
	}

	f.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("feed fetched")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &tracker.RateLimitedError{Message: rateLimitMessage(body)}
	}

	var feed *tracker.Feed
	if f.format == FormatProtobuf {
		feed, err = DecodeProtobuf(body)
	} else {
		feed, err = DecodeJSON(body)
	}
	if err != nil {
		if tracker.Kind(err) == "parse" && resp.StatusCode/100 != 2 {
			return nil, &tracker.TransportError{Source: feedSource, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
		}
		return nil, err
	}
	return feed, nil
}
