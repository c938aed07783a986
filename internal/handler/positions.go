package handler

import (
	"context"
	"net/http"

	"bustrack/internal/tracker"
)

const currentKey = "current"

// History returns every retained record, oldest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.history.Snapshot())
}

// Current runs a live poll and returns the monitored vehicles. Concurrent
// requests share one upstream call and successful results are briefly cached.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	if locs, ok := h.current.Get(currentKey); ok {
		h.writeJSON(w, http.StatusOK, locs)
		return
	}

	v, err, shared := h.inflight.Do(currentKey, func() (any, error) {
		// A flight that finished between our Get and Do has filled the cache.
		if locs, ok := h.current.Get(currentKey); ok {
			return locs, nil
		}
		// Detached so one caller going away does not fail the others.
		rec, err := h.poller.Poll(context.WithoutCancel(r.Context()))
		if err != nil {
			return nil, err
		}
		h.current.Set(currentKey, rec.Locations)
		return rec.Locations, nil
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("kind", tracker.Kind(err)).Bool("shared", shared).Msg("live poll failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, v.([]tracker.VehiclePosition))
}
