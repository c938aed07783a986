package gtfs

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bustrack/internal/tracker"
)

const archiveSource = "route archive"

// Source loads the route table from a remote GTFS archive. It implements
// tracker.RouteSource and remembers the archive's validators so unchanged
// archives are not downloaded again.
type Source struct {
	downloader *Downloader
	logger     zerolog.Logger

	mu           sync.Mutex
	lastModified string
	etag         string
	loaded       bool
}

// NewSource creates a route source for the archive at url.
func NewSource(url, dir string, timeout time.Duration, logger zerolog.Logger) *Source {
	logger = logger.With().Str("component", "routes").Logger()
	return &Source{
		downloader: NewDownloader(url, dir, timeout, logger),
		logger:     logger,
	}
}

// FetchRoutes returns the current route table, or tracker.ErrNotModified when
// a previous load is still current.
func (s *Source) FetchRoutes(ctx context.Context) ([]tracker.RouteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded && (s.lastModified != "" || s.etag != "") {
		result, err := s.downloader.Check(ctx, s.lastModified, s.etag)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("conditional check failed, downloading anyway")
		case !result.NeedsUpdate:
			s.logger.Debug().Msg("route archive not modified")
			return nil, tracker.ErrNotModified
		}
	}

	zipPath, lastModified, etag, err := s.downloader.Download(ctx)
	if err != nil {
		return nil, &tracker.TransportError{Source: archiveSource, Err: err}
	}
	defer os.Remove(zipPath)

	rows, err := ParseRoutes(zipPath)
	if err != nil {
		return nil, &tracker.ParseError{Source: archiveSource, Err: err}
	}
	if len(rows) == 0 {
		return nil, &tracker.ParseError{Source: archiveSource, Err: errors.New("no routes found")}
	}

	routes := make([]tracker.RouteInfo, 0, len(rows))
	for _, r := range rows {
		routes = append(routes, tracker.RouteInfo{
			RouteID:   r.RouteID,
			ShortName: r.RouteShortName,
			LongName:  r.RouteLongName,
		})
	}

	s.lastModified = lastModified
	s.etag = etag
	s.loaded = true

	s.logger.Info().Int("routes", len(routes)).Msg("route table parsed")
	return routes, nil
}
