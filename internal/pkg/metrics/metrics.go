package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisprgate_swaps_total",
		Help: "The total number of swap dispatches processed",
	}, []string{"status"})

	DispatchRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisprgate_dispatch_rejects_total",
		Help: "Total swap dispatches rejected before queueing",
	}, []string{"reason"})

	ComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisprgate_computations_total",
		Help: "Cluster computation callbacks by outcome",
	}, []string{"outcome"})

	CallbackLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisprgate_callback_latency_seconds",
		Help:    "Time from queueing to callback delivery in seconds",
		Buckets: prometheus.DefBuckets,
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whisprgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
