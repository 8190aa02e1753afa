package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_channel_send_total",
			Help: "Total channel send attempts by delivery method and status.",
		},
		[]string{"method", "status"},
	)
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_channel_send_duration_seconds",
			Help:    "Duration of channel send attempts.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)
	requestsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_requests_processed_total",
			Help: "Total notification requests processed by outcome.",
		},
		[]string{"outcome"},
	)
)
