package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"bustrack/internal/realtime"
	"bustrack/internal/tracker"
)

// Poller runs one on-demand poll. *tracker.Poller implements it.
type Poller interface {
	Poll(ctx context.Context) (tracker.HistoryRecord, error)
	Monitored() []string
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	history   *tracker.History
	directory *tracker.Directory
	ready     *tracker.Gate
	poller    Poller

	current      *realtime.Cache[[]tracker.VehiclePosition]
	inflight     singleflight.Group
	pollInterval time.Duration
	logger       zerolog.Logger
}

// Options tunes the handlers.
type Options struct {
	CurrentCacheTTL time.Duration // zero disables caching of /current
	PollInterval    time.Duration // SSE push interval
}

// New creates a Handler.
func New(history *tracker.History, directory *tracker.Directory, ready *tracker.Gate, poller Poller, opts Options, logger zerolog.Logger) *Handler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	return &Handler{
		history:      history,
		directory:    directory,
		ready:        ready,
		poller:       poller,
		current:      realtime.NewCache[[]tracker.VehiclePosition](opts.CurrentCacheTTL),
		pollInterval: opts.PollInterval,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("encoding response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
