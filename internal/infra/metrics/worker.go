package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(workerTaskSeconds) }

var workerTaskSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "worker_task_duration_seconds",
		Help:    "Duration of background tasks (job poll and persist) by result.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	},
	[]string{"result"}, // ok | error | panic
)

func ObserveWorkerTask(result string, d time.Duration) {
	workerTaskSeconds.WithLabelValues(result).Observe(d.Seconds())
}
