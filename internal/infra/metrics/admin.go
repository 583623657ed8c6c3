package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(apiAuthTotal, apiRequestsTotal, rateLimitTriggeredTotal) }

var (
	apiAuthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_auth_total",
			Help: "Tracks authentication attempts against the HTTP API.",
		},
		[]string{"method", "status"}, // status: 'authorized', 'unauthorized'
	)

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP API requests by route pattern and status class.",
		},
		[]string{"route", "code"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_triggered_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
)

func IncAPIAuth(method, status string) {
	apiAuthTotal.WithLabelValues(norm(method), norm(status)).Inc()
}

func IncAPIRequest(route, code string) {
	apiRequestsTotal.WithLabelValues(route, code).Inc()
}

func IncRateLimitTriggered(route string) {
	rateLimitTriggeredTotal.WithLabelValues(route).Inc()
}
