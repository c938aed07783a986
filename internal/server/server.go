package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"bustrack/internal/handler"
	"bustrack/internal/tracker"
)

// Server is the HTTP server for the tracker's query endpoints.
type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// New creates a Server with all routes registered.
func New(addr string, h *handler.Handler, ready *tracker.Gate, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "server").Logger()
	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h, ready, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the routed handler with middleware applied.
func NewRouter(h *handler.Handler, ready *tracker.Gate, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/history", h.History).Methods("GET")
	r.Handle("/current", waitForData(http.HandlerFunc(h.Current), ready)).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/sse/latest", h.SSELatest).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return withMiddleware(r, logger)
}

// Run serves until ctx is done, then closes the listener and open connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("server starting")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("server stopping")
		if err := s.http.Close(); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
