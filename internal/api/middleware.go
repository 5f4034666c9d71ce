package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"petagenda/internal/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-Api-Key"
	headerUserID    = "X-User-ID"
)

// requestID tags every request with an id and a logger carrying it.
func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		l := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.keys) > 0 {
			if _, ok := s.keys[r.Header.Get(headerAPIKey)]; !ok {
				writeError(w, http.StatusUnauthorized, "invalid or missing api key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route records latency and status under a fixed route label.
func (s *HTTPServer) route(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h(rec, r)

		elapsed := time.Since(started)
		metrics.ObserveHTTP(name, strconv.Itoa(rec.status), elapsed.Seconds())

		var ev *zerolog.Event
		if rec.status >= http.StatusInternalServerError {
			ev = zerolog.Ctx(r.Context()).Error()
		} else {
			ev = zerolog.Ctx(r.Context()).Debug()
		}
		ev.Str("route", name).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request handled")
	})
}
