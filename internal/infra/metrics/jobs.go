package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsSubmittedTotal, jobsFinishedTotal, pollTicksTotal) }

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_submitted_total",
			Help: "Generation jobs accepted by the compute API, labeled by model.",
		},
		[]string{"model"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_finished_total",
			Help: "Generation jobs that reached a terminal state, labeled by state.",
		},
		[]string{"state"}, // 'succeeded', 'failed', 'timed_out'
	)

	pollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_poll_ticks_total",
			Help: "Status checks made by the job poller, labeled by result.",
		},
		[]string{"result"}, // 'pending', 'terminal', 'error'
	)
)

func IncJobSubmitted(model string) {
	jobsSubmittedTotal.WithLabelValues(norm(model)).Inc()
}

func IncJobFinished(state string) {
	jobsFinishedTotal.WithLabelValues(norm(state)).Inc()
}

func IncPollTick(result string) {
	pollTicksTotal.WithLabelValues(norm(result)).Inc()
}
