package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(remoteRetriesTotal, uploadsTotal, rowLogAppendsTotal) }

var (
	remoteRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_call_retries_total",
			Help: "Retries of remote calls after a transient failure, labeled by operation.",
		},
		[]string{"op"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_uploads_total",
			Help: "Artifact uploads labeled by outcome step (ok, fetch, folder, upload, permission_warning).",
		},
		[]string{"outcome"},
	)

	rowLogAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "row_log_appends_total",
			Help: "Row log appends labeled by sink and result.",
		},
		[]string{"sink", "result"},
	)
)

func IncRemoteRetry(op string) {
	remoteRetriesTotal.WithLabelValues(norm(op)).Inc()
}

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncRowLogAppend(sink string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	rowLogAppendsTotal.WithLabelValues(norm(sink), result).Inc()
}
