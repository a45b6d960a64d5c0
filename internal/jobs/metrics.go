package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	outstanding   *prometheus.GaugeVec
	notifications *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetOutstanding records how many containers of a product are still with
// customers. A product that was reported before but is now settled must be
// reset with count 0.
func (m *Metrics) SetOutstanding(productID int64, count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.outstanding.WithLabelValues(formatInt(productID)).Set(float64(count))
}

// ResetOutstanding clears every outstanding series before a fresh scan.
func (m *Metrics) ResetOutstanding() {
	if m == nil {
		return
	}
	m.outstanding.Reset()
}

// AddNotification counts a delivered notification by order status.
func (m *Metrics) AddNotification(status string) {
	if m == nil || status == "" {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterops_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterops_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waterops_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	outstanding := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waterops_containers_outstanding",
		Help: "Containers delivered but not yet returned, per product.",
	}, []string{"product"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterops_notifications_total",
		Help: "In-app notifications written, grouped by order status.",
	}, []string{"status"})
	registerer.MustRegister(runs, failures, duration, outstanding, notifications)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		outstanding:   outstanding,
		notifications: notifications,
	}
}
