package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RouteSource fetches and parses the remote route table. It returns
// ErrNotModified when the table is unchanged since its last successful load.
type RouteSource interface {
	FetchRoutes(ctx context.Context) ([]RouteInfo, error)
}

// Refresher periodically reloads the route directory and fires the ready
// gate after the first successful load.
type Refresher struct {
	source    RouteSource
	directory *Directory
	ready     *Gate
	schedule  backoff.BackOff
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRefresher creates a Refresher that reloads every interval.
func NewRefresher(source RouteSource, directory *Directory, ready *Gate, interval time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{
		source:    source,
		directory: directory,
		ready:     ready,
		schedule:  backoff.NewConstantBackOff(interval),
		logger:    logger.With().Str("component", "refresher").Logger(),
		now:       time.Now,
	}
}

// Run refreshes immediately and then once per interval until ctx is done.
// Failures are logged and the previous snapshot is kept.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info().Msg("route refresher started")

	for {
		if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Str("kind", Kind(err)).
				Int("routes", r.directory.Snapshot().Len()).
				Msg("route refresh failed, keeping previous directory")
		}

		wait := r.schedule.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("route refresher stopped")
			return
		}
	}
}

// Refresh performs one fetch-parse-publish cycle.
func (r *Refresher) Refresh(ctx context.Context) error {
	routes, err := r.source.FetchRoutes(ctx)
	if errors.Is(err, ErrNotModified) {
		r.logger.Info().Msg("route table not modified")
		return nil
	}
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		return &ParseError{Source: "route table", Err: errors.New("no routes found")}
	}

	snap := NewSnapshot(routes, r.now())
	r.directory.Replace(snap)
	r.logger.Info().Int("routes", snap.Len()).Msg("route directory refreshed")

	if !r.ready.Fired() {
		r.ready.Fire()
		r.logger.Info().Msg("route directory ready")
	}
	return nil
}
