package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(commerceRequests, commerceLatency)
}

var (
	commerceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commerce_requests_total",
			Help: "Calls made to the shop backend, by operation and status.",
		},
		[]string{"op", "status"},
	)

	commerceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commerce_request_duration_seconds",
			Help:    "Shop backend call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)
)

// ObserveCommerceRequest records one backend call; status is "ok" or "fail".
func ObserveCommerceRequest(op, status string, took time.Duration) {
	commerceRequests.WithLabelValues(norm(op), norm(status)).Inc()
	commerceLatency.WithLabelValues(norm(op)).Observe(took.Seconds())
}
