package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskboard-scheduler/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	armed := &fakeScheduler{StatusValue: scheduler.Status{
		DailyAssignment:      scheduler.JobStatus{Scheduled: true},
		HourlyReconciliation: scheduler.JobStatus{Scheduled: true},
	}}

	tests := []struct {
		name          string
		db            Pinger
		sched         *fakeScheduler
		wantStatus    int
		wantScheduler string
	}{
		{name: "in-memory store", sched: armed, wantStatus: http.StatusOK, wantScheduler: "running"},
		{
			name:       "database up",
			db:         pingerFunc(func(context.Context) error { return nil }),
			sched:      &fakeScheduler{},
			wantStatus: http.StatusOK, wantScheduler: "stopped",
		},
		{
			name:       "database down",
			db:         pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
			sched:      armed,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tc.db, tc.sched).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus != http.StatusOK {
				assert.NotContains(t, w.Body.String(), "refused")
				return
			}
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, tc.wantScheduler, resp.Scheduler)
		})
	}
}
