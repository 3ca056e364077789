// Package jobmetrics instruments background report jobs.
package jobmetrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes recorded in the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	warmed      *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	now         func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used, once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_jobs_total",
			Help: "Job executions by job name and outcome.",
		}, []string{"job", "status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_jobs_failures_total",
			Help: "Job executions that returned a retryable error.",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerline_job_duration_seconds",
			Help:    "Wall time of job executions.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerline_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		warmed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_reports_warmed_total",
			Help: "Reports prebuilt into the cache by background jobs.",
		}, []string{"report"}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_debt_anomalies_total",
			Help: "Counterparties whose repayments exceed the debt taken, by company.",
		}, []string{"company"}),
		now: time.Now,
	}
}

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: m.now()}
}

// End records the run outcome and returns err untouched. Errors wrapping
// asynq.SkipRetry count as skipped, not failed, since they will never retry.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	end := m.now()
	status := StatusSuccess
	switch {
	case err == nil:
		m.lastSuccess.WithLabelValues(t.job).Set(float64(end.Unix()))
	case errors.Is(err, asynq.SkipRetry):
		status = StatusSkipped
	default:
		status = StatusFailure
		m.failures.WithLabelValues(t.job).Inc()
	}
	m.runs.WithLabelValues(t.job, status).Inc()
	m.duration.WithLabelValues(t.job).Observe(end.Sub(t.start).Seconds())
	return err
}

// AddWarmed counts a report prebuilt into the cache.
func (m *Metrics) AddWarmed(report string) {
	if m == nil {
		return
	}
	m.warmed.WithLabelValues(report).Inc()
}

// AddDebtAnomalies counts counterparties repaid beyond what was taken.
func (m *Metrics) AddDebtAnomalies(companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	company := "0"
	if companyID > 0 {
		company = strconv.FormatInt(companyID, 10)
	}
	m.anomalies.WithLabelValues(company).Add(float64(count))
}
