// Package api exposes the scheduler over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"petagenda/internal/service"
)

// Config holds the HTTP listener settings.
type Config struct {
	Port    int
	APIKeys []string
	// RateLimit is requests per second across all clients; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HTTPServer serves the booking API, health probes and metrics.
type HTTPServer struct {
	server  *http.Server
	svc     *service.BookingService
	ready   []Pinger
	keys    map[string]struct{}
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewHTTPServer builds the mux. Every pinger must answer for /readyz to succeed.
func NewHTTPServer(cfg Config, svc *service.BookingService, logger zerolog.Logger, ready ...Pinger) *HTTPServer {
	s := &HTTPServer{
		svc:    svc,
		ready:  ready,
		keys:   make(map[string]struct{}, len(cfg.APIKeys)),
		logger: logger.With().Str("component", "http").Logger(),
	}
	for _, k := range cfg.APIKeys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	api := http.NewServeMux()
	api.Handle("GET /api/shops/{shopID}/availability", s.route("availability", s.handleAvailability))
	api.Handle("POST /api/bookings", s.route("create_booking", s.handleCreateBooking))
	api.Handle("GET /api/bookings/{id}", s.route("get_booking", s.handleGetBooking))
	api.Handle("POST /api/bookings/{id}/confirm", s.route("confirm_booking", s.handleConfirm))
	api.Handle("POST /api/bookings/{id}/cancel", s.route("cancel_booking", s.handleCancel))
	api.Handle("POST /api/bookings/{id}/recurrence", s.route("create_recurrence", s.handleRecurrence))
	api.Handle("POST /api/time-blocks", s.route("create_time_block", s.handleCreateTimeBlock))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/api/", s.authenticate(s.rateLimit(api)))

	return s.requestID(root)
}

// Start listens until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range s.ready {
		if err := p.PingContext(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
