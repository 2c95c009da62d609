package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuerelay_runs_total",
			Help: "Total number of pipeline runs by trigger kind and status.",
		},
		[]string{"trigger", "status"}, // status: ok, failed
	)

	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuerelay_reports_total",
			Help: "Total number of comments posted to the issue tracker by status.",
		},
		[]string{"status"}, // e.g. ok, http_4xx, http_5xx, network
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "issuerelay_report_duration_seconds",
			Help:    "Latency of the tracker comment call.",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "issuerelay_dispatch_backlog",
			Help: "Depth of the dispatch topic channel awaiting pipeline runs.",
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(RunsTotal, ReportsTotal, ReportDuration, DispatchBacklog)
}

// RecordRun counts one completed pipeline run.
func RecordRun(trigger, status string) {
	RunsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordReport counts one tracker comment attempt and its latency.
func RecordReport(status string, d time.Duration) {
	ReportsTotal.WithLabelValues(status).Inc()
	ReportDuration.Observe(d.Seconds())
}

// UpdateDispatchBacklog sets the current dispatch channel depth.
func UpdateDispatchBacklog(depth float64) {
	DispatchBacklog.Set(depth)
}
