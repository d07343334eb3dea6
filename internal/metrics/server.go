package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server serves /metrics and a /healthz check.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a metrics server on addr for gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthz)

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("Metrics server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Metrics server shutting down")
	return s.server.Shutdown(ctx)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "UP",
		"checkTime": time.Now().UTC().Format(time.RFC3339),
	})
}
