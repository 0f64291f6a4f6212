package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homecasebot_runs_total",
			Help: "Total number of scrape runs per outcome (success, no_new, error)",
		},
		[]string{"outcome"},
	)

	RunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "homecasebot_run_duration_seconds",
			Help:    "Duration of a full scrape-parse-notify run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MessagesFoundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homecasebot_messages_found_total",
			Help: "Total number of candidate consumption messages found on the portal",
		},
	)

	MessagesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homecasebot_messages_saved_total",
			Help: "Total number of new consumption messages persisted",
		},
	)

	MessagesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homecasebot_messages_skipped_total",
			Help: "Total number of messages skipped because they were already stored",
		},
	)

	ParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homecasebot_parse_errors_total",
			Help: "Total number of parse failures per section",
		},
		[]string{"section"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homecasebot_emails_sent_total",
			Help: "Total number of report emails sent per outcome",
		},
		[]string{"outcome"},
	)

	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homecasebot_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homecasebot_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homecasebot_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homecasebot_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homecasebot_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homecasebot_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
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
