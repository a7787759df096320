package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	started := time.Unix(1_700_000_000, 0)
	m.ObserveJob("dailyAssignment", OutcomeSuccess, started, started.Add(2*time.Second))
	m.ObserveJob("dailyAssignment", OutcomeError, started, started.Add(time.Second))
	m.TasksAssigned(3)
	m.TasksAssigned(0)
	m.SubscriberServed()
	m.Failure("materialize")
	m.Anomaly(AnomalyLostClaim)
	m.TaskArchived()

	assert.InDelta(t, 1, testutil.ToFloat64(m.jobRuns.WithLabelValues("dailyAssignment", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.jobRuns.WithLabelValues("dailyAssignment", OutcomeError)), 0)
	assert.InDelta(t, float64(started.Add(2*time.Second).Unix()),
		testutil.ToFloat64(m.lastSuccessful.WithLabelValues("dailyAssignment")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.tasksAssigned), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.served), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("materialize")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.anomalies.WithLabelValues(AnomalyLostClaim)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.tasksArchived), 0)

	count, err := testutil.GatherAndCount(reg, "taskboard_scheduler_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveJob("hourlyReconciliation", OutcomePanic, time.Now(), time.Now())
		m.TasksAssigned(1)
		m.SubscriberServed()
		m.Failure("archive")
		m.Anomaly(AnomalyAlreadyAssigned)
		m.TaskArchived()
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
