package tracker

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// FeedSource fetches and decodes the live vehicle feed. Implementations
// report failures as *TransportError, *ParseError or *RateLimitedError.
type FeedSource interface {
	Fetch(ctx context.Context) (*Feed, error)
}

// Poller periodically fetches the vehicle feed, keeps the vehicles on
// monitored routes, and appends one HistoryRecord per successful poll.
type Poller struct {
	feed      FeedSource
	directory *Directory
	history   *History
	ready     *Gate
	monitored []string
	schedule  backoff.BackOff
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPoller creates a Poller that polls every interval once ready has fired.
func NewPoller(feed FeedSource, directory *Directory, history *History, ready *Gate, monitored []string, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		feed:      feed,
		directory: directory,
		history:   history,
		ready:     ready,
		monitored: append([]string(nil), monitored...),
		schedule:  backoff.NewConstantBackOff(interval),
		logger:    logger.With().Str("component", "poller").Logger(),
		now:       time.Now,
	}
}

// Monitored returns the monitored route short names.
func (p *Poller) Monitored() []string {
	return append([]string(nil), p.monitored...)
}

// Run waits for the route directory to load, then polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Msg("waiting for route directory")
	if err := p.ready.Wait(ctx); err != nil {
		return
	}
	p.logger.Info().Strs("monitored", p.monitored).Msg("poller started")

	for {
		p.pollOnce(ctx)

		wait := p.schedule.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info().Msg("poller stopped")
			return
		}
	}
}

// Poll fetches the feed once and builds a record against the current
// directory snapshot, without appending it to the history.
func (p *Poller) Poll(ctx context.Context) (HistoryRecord, error) {
	feed, err := p.feed.Fetch(ctx)
	if err != nil {
		return HistoryRecord{}, err
	}
	return BuildRecord(feed, p.directory.Snapshot(), p.monitored, p.now()), nil
}

func (p *Poller) pollOnce(ctx context.Context) {
	rec, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := Kind(err)
		ev := p.logger.Error()
		if kind == "rate_limited" || kind == "transport" {
			ev = p.logger.Warn()
		}
		ev.Err(err).Str("kind", kind).Msg("poll failed")
		return
	}

	p.history.Append(rec)
	if p.logger.GetLevel() <= zerolog.DebugLevel {
		for _, v := range rec.Locations {
			p.logger.Debug().
				Str("vehicle", v.VehicleID).
				Str("route", v.Route.ShortName).
				Str("map", v.MapLink()).
				Msg("vehicle position")
		}
	}
	p.logger.Info().
		Int("vehicles", len(rec.Locations)).
		Int("history", p.history.Len()).
		Msg("poll recorded")
}

// BuildRecord keeps the feed entities whose route id belongs to one of the
// monitored short names in snap, in feed order, joined with their route.
func BuildRecord(feed *Feed, snap *Snapshot, monitored []string, now time.Time) HistoryRecord {
	routes := snap.Select(monitored)

	locations := make([]VehiclePosition, 0)
	for _, e := range feed.Entities {
		route, ok := routes[e.RouteID]
		if !ok {
			continue
		}
		locations = append(locations, VehiclePosition{
			Lat:       e.Lat,
			Lon:       e.Lon,
			Timestamp: e.Timestamp,
			VehicleID: e.VehicleID,
			Route:     route,
		})
	}

	return HistoryRecord{
		Timestamp: strconv.FormatInt(now.Unix(), 10),
		Locations: locations,
	}
}
