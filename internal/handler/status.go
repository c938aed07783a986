package handler

import (
	"net/http"

	"bustrack/internal/templates"
)

// HealthResponse reports whether the tracker has loaded its directory and how
// much history it holds.
type HealthResponse struct {
	Status   string `json:"status"`
	Routes   int    `json:"routes"`
	History  int    `json:"history"`
	LastPoll string `json:"last_poll"`
}

// Health always answers 200; status is "loading" until the directory loads.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "loading",
		Routes:  h.directory.Snapshot().Len(),
		History: h.history.Len(),
	}
	if h.ready.Fired() {
		resp.Status = "ok"
	}
	if rec, ok := h.history.Latest(); ok {
		resp.LastPoll = rec.Timestamp
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Index renders the HTML status page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	snap := h.directory.Snapshot()
	data := templates.IndexData{
		Ready:    h.ready.Fired(),
		Routes:   snap.Len(),
		History:  h.history.Len(),
		Capacity: h.history.Capacity(),
	}
	for _, name := range h.poller.Monitored() {
		route, found := snap.Lookup(name)
		data.Monitored = append(data.Monitored, templates.MonitoredRoute{ShortName: name, Route: route, Found: found})
	}
	if rec, ok := h.history.Latest(); ok {
		data.Latest = &rec
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(r.Context(), w); err != nil {
		h.logger.Error().Err(err).Msg("rendering index")
	}
}
