package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"bustrack/internal/config"
	"bustrack/internal/gtfs"
	"bustrack/internal/handler"
	"bustrack/internal/realtime"
	"bustrack/internal/server"
	"bustrack/internal/tracker"
)

// app wires the tracker's components from a validated configuration.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	directory *tracker.Directory
	history   *tracker.History
	ready     *tracker.Gate
	refresher *tracker.Refresher
	poller    *tracker.Poller
}

func newApp(cfg *config.Config, logger zerolog.Logger) *app {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		directory: tracker.NewDirectory(),
		history:   tracker.NewHistory(cfg.HistoryCapacity),
		ready:     tracker.NewGate(),
	}

	routes := gtfs.NewSource(cfg.RoutesURL, cfg.DownloadDir, cfg.ArchiveTimeout, logger)
	feed := realtime.NewFetcher(cfg.FeedURL, cfg.APIKey, realtime.Format(cfg.FeedFormat), cfg.FetchTimeout, logger)

	a.refresher = tracker.NewRefresher(routes, a.directory, a.ready, cfg.RefreshInterval, logger)
	a.poller = tracker.NewPoller(feed, a.directory, a.history, a.ready, cfg.MonitoredRoutes, cfg.PollInterval, logger)
	return a
}

// serve runs the refresher, the poller and the HTTP server until ctx is done
// or the server fails.
func (a *app) serve(ctx context.Context) error {
	h := handler.New(a.history, a.directory, a.ready, a.poller, handler.Options{
		CurrentCacheTTL: a.cfg.CurrentCacheTTL,
		PollInterval:    a.cfg.PollInterval,
	}, a.logger)
	srv := server.New(a.cfg.Addr(), h, a.ready, a.logger)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		a.refresher.Run(ctx)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		a.poller.Run(ctx)
		return nil
	})
	p.Go(srv.Run)
	return p.Wait()
}

// selectedRoutes returns the directory entries for the monitored short names,
// in configuration order, skipping names the directory does not know.
func (a *app) selectedRoutes() []tracker.RouteInfo {
	snap := a.directory.Snapshot()
	out := make([]tracker.RouteInfo, 0, len(a.cfg.MonitoredRoutes))
	for _, name := range a.cfg.MonitoredRoutes {
		if r, ok := snap.Lookup(name); ok {
			out = append(out, r)
		} else {
			a.logger.Warn().Str("route", name).Msg("monitored route not in directory")
		}
	}
	return out
}
