package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(mirrorCacheTotal) }

// mirrorCacheTotal counts lookups against the artifact mirror.
var mirrorCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mirror_cache_requests_total",
		Help: "Artifact mirror lookups by cache and result.",
	},
	[]string{"cache", "result"}, // cache: artifact_list | artifact_bytes, result: hit | miss
)

func IncCacheRequest(cacheName, result string) {
	mirrorCacheTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
