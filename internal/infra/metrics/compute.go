package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		computeCallsTotal,
		computeCallsLatencyMs,
		computeInflight,
	)
}

var (
	computeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compute_calls_total",
			Help: "Calls made to the image compute API per provider/op.",
		},
		[]string{"provider", "op", "success"},
	)

	computeCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compute_calls_latency_ms",
			Help:    "Compute call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 15000, 60000},
		},
		[]string{"provider", "op"},
	)

	computeInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "compute_inflight_calls",
			Help: "Compute calls currently holding a concurrency slot.",
		},
	)
)

// ObserveComputeCall records one create or status call.
func ObserveComputeCall(provider, op string, latencyMs int64, success bool) {
	computeCallsTotal.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).Inc()
	computeCallsLatencyMs.WithLabelValues(norm(provider), norm(op)).Observe(float64(latencyMs))
}

func AddComputeInflight(delta float64) {
	computeInflight.Add(delta)
}
