// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_requests_total",
			Help: "Total number of requests per route",
		},
		[]string{"route"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wattscope_request_duration_seconds",
			Help:    "Request duration in seconds per route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_request_errors_total",
			Help: "Total number of error responses per route and status code",
		},
		[]string{"route", "code"},
	)
)

var (
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_calculations_total",
			Help: "Bill calculations per tariff category and kind (single, cumulative)",
		},
		[]string{"category", "kind"},
	)

	SlabResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_slab_resolutions_total",
			Help: "Slab selected per tariff category and slab label",
		},
		[]string{"category", "slab"},
	)

	UsageEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_usage_events_total",
			Help: "Saved usage events changes per operation (saved, deleted)",
		},
		[]string{"op"},
	)
)

// ObserveCalculation records one priced bill.
func ObserveCalculation(category, kind, slab string) {
	CalculationsTotal.WithLabelValues(category, kind).Inc()
	SlabResolutionsTotal.WithLabelValues(category, slab).Inc()
}

var (
	DBPoolOpenConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_db_pool_open_conns",
			Help: "Open connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolInUseConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_db_pool_in_use_conns",
			Help: "Connections currently in use per driver",
		},
		[]string{"driver"},
	)

	DBPoolWaitCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_db_pool_wait_count",
			Help: "Total number of connections waited for per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, open, idle, inUse int, waitCount int64) {
	DBPoolOpenConns.WithLabelValues(driver).Set(float64(open))
	DBPoolIdleConns.WithLabelValues(driver).Set(float64(idle))
	DBPoolInUseConns.WithLabelValues(driver).Set(float64(inUse))
	DBPoolWaitCount.WithLabelValues(driver).Set(float64(waitCount))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wattscope_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)

	DigestEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattscope_digest_emails_total",
			Help: "Bill digest emails per result (sent, failed, skipped)",
		},
		[]string{"result"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
