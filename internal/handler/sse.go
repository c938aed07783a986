package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSELatest streams the newest history record via Server-Sent Events. It sends
// on connect and then once per poll interval, skipping ticks with nothing new.
func (h *Handler) SSELatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The stream outlives the server's write timeout.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	last := h.sendLatest(w, flusher, "")

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			last = h.sendLatest(w, flusher, last)
		case <-ctx.Done():
			return
		}
	}
}

// sendLatest writes a "record" event if the newest record differs from the one
// last sent, and returns the timestamp of whatever is now current.
func (h *Handler) sendLatest(w http.ResponseWriter, flusher http.Flusher, lastTS string) string {
	rec, ok := h.history.Latest()
	if !ok || rec.Timestamp == lastTS {
		return lastTS
	}

	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error().Err(err).Msg("encoding SSE record")
		return lastTS
	}

	fmt.Fprintf(w, "event: record\n")
	fmt.Fprintf(w, "id: %s\n", rec.Timestamp)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
	return rec.Timestamp
}
