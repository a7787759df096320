// Package metrics exposes Prometheus collectors for the scheduler and the
// assignment service. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskboard"

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
)

// Anomaly kinds
const (
	AnomalyLostClaim       = "lost_claim"
	AnomalyAlreadyAssigned = "already_assigned"
)

// Metrics groups every collector the service records to.
type Metrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	tasksAssigned  prometheus.Counter
	served         prometheus.Counter
	failures       *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	tasksArchived  prometheus.Counter
	lastSuccessful *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduler job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		lastSuccessful: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		tasksAssigned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "tasks_assigned_total",
			Help:      "Task instances created from templates.",
		}),
		served: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "subscribers_served_total",
			Help:      "Subscribers that received at least one task.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "failures_total",
			Help:      "Per-item failures by stage.",
		}, []string{"stage"}),
		anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "anomalies_total",
			Help:      "Concurrency anomalies detected and skipped.",
		}, []string{"kind"}),
		tasksArchived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "tasks_archived_total",
			Help:      "Completed tasks archived by reconciliation.",
		}),
	}
}

// ObserveJob records one job run.
func (m *Metrics) ObserveJob(job, outcome string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(finished.Sub(started).Seconds())
	if outcome == OutcomeSuccess {
		m.lastSuccessful.WithLabelValues(job).Set(float64(finished.Unix()))
	}
}

// TasksAssigned adds n created tasks.
func (m *Metrics) TasksAssigned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tasksAssigned.Add(float64(n))
}

// SubscriberServed counts one subscriber that received tasks.
func (m *Metrics) SubscriberServed() {
	if m == nil {
		return
	}
	m.served.Inc()
}

// Failure counts one per-item failure at stage.
func (m *Metrics) Failure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}

// Anomaly counts one detected concurrency anomaly.
func (m *Metrics) Anomaly(kind string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(kind).Inc()
}

// TaskArchived counts one archived task.
func (m *Metrics) TaskArchived() {
	if m == nil {
		return
	}
	m.tasksArchived.Inc()
}
