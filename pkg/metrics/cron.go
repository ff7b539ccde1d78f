package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics covers the cron worker: run outcomes, lock contention and
// how many records each job moved.
type CronJobMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	processed *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	c := &collectors{reg: reg}
	m := &CronJobMetrics{
		duration:  c.histogram("scheduler_job_duration_seconds", "Wall time of scheduled job runs.", prometheus.DefBuckets, "job"),
		success:   c.counter("scheduler_job_success_total", "Scheduled job runs that returned no error.", "job"),
		failure:   c.counter("scheduler_job_failure_total", "Scheduled job runs that returned an error.", "job"),
		skipped:   c.counter("scheduler_tick_skipped_total", "Ticks skipped because another instance held the lock.", "job"),
		processed: c.counter("scheduler_records_processed_total", "Records a scheduled job transitioned, by outcome.", "job", "outcome"),
	}
	c.register()
	return m
}

func (m *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *CronJobMetrics) IncSuccess(job string) {
	if m != nil {
		bump(m.success, 1, job)
	}
}

func (m *CronJobMetrics) IncFailure(job string) {
	if m != nil {
		bump(m.failure, 1, job)
	}
}

func (m *CronJobMetrics) IncSkipped(job string) {
	if m != nil {
		bump(m.skipped, 1, job)
	}
}

// AddProcessed counts n records for job under outcome (ok or failed).
func (m *CronJobMetrics) AddProcessed(job, outcome string, n int) {
	if m != nil {
		bump(m.processed, float64(n), job, outcome)
	}
}
