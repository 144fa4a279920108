// Package metrics holds the Prometheus collectors for booking traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spinhub_booking_operations_total",
			Help: "Booking operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	bookingTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spinhub_booking_tx_duration_seconds",
			Help:    "Wall time of booking transactions, lock waits included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"operation"},
	)

	promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spinhub_waitlist_promotions_total",
			Help: "Waitlisted bookings promoted or dropped while filling a released seat",
		},
		[]string{"result"},
	)

	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spinhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func TrackBooking(operation, outcome string, took time.Duration) {
	bookingOps.WithLabelValues(operation, outcome).Inc()
	bookingTxDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func TrackPromotion(promoted bool) {
	if promoted {
		promotions.WithLabelValues("promoted").Inc()
		return
	}
	promotions.WithLabelValues("dropped").Inc()
}

func TrackHTTP(method, route, status string, took time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Observe(took.Seconds())
}
