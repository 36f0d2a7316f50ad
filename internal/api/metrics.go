package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the HTTP and booking counters exposed on /metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
	bookings *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_http_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Booking attempts by outcome (ok, no_availability, booking_conflict, error)",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.latency, m.bookings)
	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.requests.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.latency.Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordBooking(outcome string) {
	m.bookings.WithLabelValues(outcome).Inc()
}
