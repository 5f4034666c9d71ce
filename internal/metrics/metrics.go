package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "petagenda"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created, by origin (single, series).",
		},
		[]string{"origin"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking attempts rejected by the validator, by reason.",
		},
		[]string{"reason"},
	)

	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions, by target status.",
		},
		[]string{"status"},
	)

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Availability lookups, by cache result (hit, miss, bypass).",
		},
		[]string{"cache"},
	)

	cacheBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_breaker_open",
			Help:      "1 while the availability cache circuit breaker is open.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingRejected, bookingTransition,
			availabilityRequests, cacheBreakerState,
			httpRequests, httpDuration,
		)
	})
}

func IncBookingCreated(origin string, n int) {
	bookingCreated.WithLabelValues(origin).Add(float64(n))
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncTransition(status string) {
	bookingTransition.WithLabelValues(status).Inc()
}

func IncAvailability(cache string) {
	availabilityRequests.WithLabelValues(cache).Inc()
}

func SetBreakerOpen(open bool) {
	if open {
		cacheBreakerState.Set(1)
		return
	}
	cacheBreakerState.Set(0)
}

func ObserveHTTP(route, code string, seconds float64) {
	httpRequests.WithLabelValues(route, code).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}
