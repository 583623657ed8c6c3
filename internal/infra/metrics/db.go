package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rowLogPoolConns) }

// rowLogPoolConns reports the postgres row log pool, sampled by ReportPoolStats.
var rowLogPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "row_log_db_pool_connections",
		Help: "Connections of the postgres row log pool by state.",
	},
	[]string{"state"}, // total | idle | in_use
)

func SetDBPoolStats(total, idle, inUse int32) {
	rowLogPoolConns.WithLabelValues("total").Set(float64(total))
	rowLogPoolConns.WithLabelValues("idle").Set(float64(idle))
	rowLogPoolConns.WithLabelValues("in_use").Set(float64(inUse))
}
