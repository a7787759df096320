package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/api/shared"
	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/scheduler"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	RunAssignmentNowFunc     func(ctx context.Context) (assignment.PassResult, error)
	RunReconciliationNowFunc func(ctx context.Context) (assignment.ReconcileResult, error)
	StatusValue              scheduler.Status
}

func (f *fakeScheduler) RunAssignmentNow(ctx context.Context) (assignment.PassResult, error) {
	return f.RunAssignmentNowFunc(ctx)
}

func (f *fakeScheduler) RunReconciliationNow(ctx context.Context) (assignment.ReconcileResult, error) {
	return f.RunReconciliationNowFunc(ctx)
}

func (f *fakeScheduler) Status() scheduler.Status { return f.StatusValue }

type fakeAssigner struct {
	AssignToSubscriberFunc func(ctx context.Context, id uuid.UUID) (int, error)
	StatsFunc              func(ctx context.Context) (assignment.Stats, error)
	ListPaidFunc           func(ctx context.Context, page, limit int) (assignment.SubscriberPage, error)
}

func (f *fakeAssigner) AssignToSubscriber(ctx context.Context, id uuid.UUID) (int, error) {
	return f.AssignToSubscriberFunc(ctx, id)
}

func (f *fakeAssigner) Stats(ctx context.Context) (assignment.Stats, error) {
	return f.StatsFunc(ctx)
}

func (f *fakeAssigner) ListPaid(ctx context.Context, page, limit int) (assignment.SubscriberPage, error) {
	return f.ListPaidFunc(ctx, page, limit)
}

func newTestRouter(s *fakeScheduler, a *fakeAssigner) http.Handler {
	h := NewAdminHandler(s, a, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Post("/assign-tasks-now", h.AssignTasksNow)
		r.Post("/check-completed-tasks-now", h.CheckCompletedTasksNow)
		r.Get("/scheduler-status", h.SchedulerStatus)
		r.Post("/assign-tasks-to-user/{id}", h.AssignTasksToUser)
		r.Get("/premium-users-stats", h.PremiumUsersStats)
		r.Get("/premium-users", h.PremiumUsers)
	})
	return r
}

func serve(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(context.WithValue(req.Context(), shared.TraceIDKey, "trace-1"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestAdminHandler_AssignTasksNow(t *testing.T) {
	t.Run("returns pass summary", func(t *testing.T) {
		s := &fakeScheduler{RunAssignmentNowFunc: func(context.Context) (assignment.PassResult, error) {
			return assignment.PassResult{Considered: 4, Served: 3, AssignedTasks: 9, Failed: 1}, nil
		}}
		w, body := serve(t, newTestRouter(s, &fakeAssigner{}), http.MethodPost, "/admin/assign-tasks-now")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{
			"considered": 4.0, "served": 3.0, "assignedTasks": 9.0, "failed": 1.0,
		}, body)
	})

	t.Run("timeout", func(t *testing.T) {
		s := &fakeScheduler{RunAssignmentNowFunc: func(context.Context) (assignment.PassResult, error) {
			return assignment.PassResult{}, fmt.Errorf("%w: dailyAssignment after 5m0s", scheduler.ErrRunTimeout)
		}}
		w, body := serve(t, newTestRouter(s, &fakeAssigner{}), http.MethodPost, "/admin/assign-tasks-now")

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, "Run did not finish in time", body["error"])
		assert.Equal(t, "trace-1", body["trace_id"])
	})

	t.Run("internal error is not leaked", func(t *testing.T) {
		s := &fakeScheduler{RunAssignmentNowFunc: func(context.Context) (assignment.PassResult, error) {
			return assignment.PassResult{}, errors.New("pq: relation subscribers does not exist")
		}}
		w, body := serve(t, newTestRouter(s, &fakeAssigner{}), http.MethodPost, "/admin/assign-tasks-now")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to run assignment", body["error"])
		assert.NotContains(t, w.Body.String(), "relation")
	})
}

func TestAdminHandler_CheckCompletedTasksNow(t *testing.T) {
	s := &fakeScheduler{RunReconciliationNowFunc: func(context.Context) (assignment.ReconcileResult, error) {
		return assignment.ReconcileResult{
			Completed:  3,
			Archived:   2,
			Failed:     1,
			Assignment: assignment.PassResult{AssignedTasks: 2, Failed: 5},
		}, nil
	}}
	w, body := serve(t, newTestRouter(s, &fakeAssigner{}), http.MethodPost, "/admin/check-completed-tasks-now")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"completed": 3.0, "archived": 2.0, "failed": 1.0, "assignedTasks": 2.0,
	}, body)
}

func TestAdminHandler_SchedulerStatus(t *testing.T) {
	last := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)
	next := last.Add(time.Hour)
	s := &fakeScheduler{StatusValue: scheduler.Status{
		DailyAssignment:      scheduler.JobStatus{Scheduled: true, LastRunAt: &last, LastError: "boom"},
		HourlyReconciliation: scheduler.JobStatus{Scheduled: true, Running: true, NextRunAt: &next},
	}}
	w, body := serve(t, newTestRouter(s, &fakeAssigner{}), http.MethodGet, "/admin/scheduler-status")

	assert.Equal(t, http.StatusOK, w.Code)
	daily, ok := body["dailyAssignment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, daily["scheduled"])
	assert.Equal(t, false, daily["running"])
	assert.Equal(t, "boom", daily["lastError"])
	assert.Equal(t, "2024-05-20T06:00:00Z", daily["lastRunAt"])

	hourly, ok := body["hourlyReconciliation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, hourly["running"])
	assert.Equal(t, "2024-05-20T07:00:00Z", hourly["nextRunAt"])
}

func TestAdminHandler_AssignTasksToUser(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		count      int
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "assigned", path: "/admin/assign-tasks-to-user/" + id.String(), count: 3, wantStatus: http.StatusOK},
		{name: "nothing left", path: "/admin/assign-tasks-to-user/" + id.String(), wantStatus: http.StatusOK},
		{name: "bad uuid", path: "/admin/assign-tasks-to-user/not-a-uuid", wantStatus: http.StatusBadRequest, wantError: "Invalid subscriber id"},
		{name: "nil uuid", path: "/admin/assign-tasks-to-user/" + uuid.Nil.String(), wantStatus: http.StatusBadRequest, wantError: "Invalid subscriber id"},
		{
			name: "unknown subscriber", path: "/admin/assign-tasks-to-user/" + id.String(),
			err: assignment.ErrSubscriberNotFound, wantStatus: http.StatusNotFound, wantError: "Subscriber not found",
		},
		{
			name: "store not found", path: "/admin/assign-tasks-to-user/" + id.String(),
			err: fmt.Errorf("lookup: %w", store.ErrSubscriberNotFound), wantStatus: http.StatusNotFound, wantError: "Subscriber not found",
		},
		{
			name: "not eligible", path: "/admin/assign-tasks-to-user/" + id.String(),
			err: assignment.ErrSubscriberNotEligible, wantStatus: http.StatusConflict,
			wantError: "Subscriber is not eligible for automatic tasks",
		},
		{
			name: "in progress", path: "/admin/assign-tasks-to-user/" + id.String(),
			err: assignment.ErrAssignmentInProgress, wantStatus: http.StatusConflict,
			wantError: "Assignment already in progress for subscriber",
		},
		{
			name: "all creations failed", path: "/admin/assign-tasks-to-user/" + id.String(),
			err: assignment.NewServiceError("assign_to_subscriber", "2 task creations failed", assignment.ErrNothingCreated),
			wantStatus: http.StatusInternalServerError, wantError: "Failed to assign tasks",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotID uuid.UUID
			a := &fakeAssigner{AssignToSubscriberFunc: func(_ context.Context, got uuid.UUID) (int, error) {
				gotID = got
				return tc.count, tc.err
			}}
			w, body := serve(t, newTestRouter(&fakeScheduler{}, a), http.MethodPost, tc.path)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, body["error"])
				return
			}
			assert.Equal(t, id, gotID)
			assert.Equal(t, map[string]any{"assignedCount": float64(tc.count)}, body)
		})
	}
}

func TestAdminHandler_PremiumUsersStats(t *testing.T) {
	a := &fakeAssigner{StatsFunc: func(context.Context) (assignment.Stats, error) {
		return assignment.Stats{
			Tiers: []store.TierStats{
				{Tier: domain.TierPremium, Subscribers: 2, AverageCompleted: 4.5, AverageStreak: 2},
			},
			TotalSubscribers:            2,
			UsersWithSelectedProfession: 1,
		}, nil
	}}
	w, body := serve(t, newTestRouter(&fakeScheduler{}, a), http.MethodGet, "/admin/premium-users-stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, body["totalSubscribers"])
	assert.Equal(t, 1.0, body["usersWithSelectedProfession"])
	tiers, ok := body["tiers"].([]any)
	require.True(t, ok)
	assert.Len(t, tiers, 1)

	a.StatsFunc = func(context.Context) (assignment.Stats, error) {
		return assignment.Stats{}, fmt.Errorf("%w: connection refused", store.ErrUnavailable)
	}
	w, body = serve(t, newTestRouter(&fakeScheduler{}, a), http.MethodGet, "/admin/premium-users-stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service temporarily unavailable", body["error"])
}

func TestAdminHandler_PremiumUsers(t *testing.T) {
	sub := domain.NewSubscriber("ada", "ada@example.com")
	now := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)
	require.NoError(t, sub.ChangeTier(domain.TierPro, now))
	require.NoError(t, sub.SelectProfession(uuid.New(), "backend", now))

	tests := []struct {
		name       string
		query      string
		err        error
		wantPage   int
		wantLimit  int
		wantStatus int
		wantError  string
	}{
		{name: "defaults", wantPage: 1, wantLimit: assignment.DefaultPageLimit, wantStatus: http.StatusOK},
		{name: "explicit page", query: "?page=3&limit=5", wantPage: 3, wantLimit: 5, wantStatus: http.StatusOK},
		{name: "non-numeric page", query: "?page=two", wantStatus: http.StatusBadRequest, wantError: "Invalid query parameter"},
		{name: "zero limit", query: "?limit=0", wantStatus: http.StatusBadRequest, wantError: "Invalid query parameter"},
		{
			name: "store unavailable", err: fmt.Errorf("%w: timeout", store.ErrUnavailable),
			wantPage: 1, wantLimit: assignment.DefaultPageLimit,
			wantStatus: http.StatusServiceUnavailable, wantError: "Service temporarily unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotPage, gotLimit int
			a := &fakeAssigner{ListPaidFunc: func(_ context.Context, page, limit int) (assignment.SubscriberPage, error) {
				gotPage, gotLimit = page, limit
				if tc.err != nil {
					return assignment.SubscriberPage{}, tc.err
				}
				return assignment.SubscriberPage{
					Subscribers: []*domain.Subscriber{sub},
					Page:        page,
					Limit:       limit,
					Total:       41,
					Pages:       3,
				}, nil
			}}
			w, body := serve(t, newTestRouter(&fakeScheduler{}, a), http.MethodGet, "/admin/premium-users"+tc.query)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantPage, gotPage)
			assert.Equal(t, tc.wantLimit, gotLimit)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, body["error"])
				return
			}

			assert.Equal(t, map[string]any{
				"page": float64(tc.wantPage), "limit": float64(tc.wantLimit), "total": 41.0, "pages": 3.0,
			}, body["pagination"])
			data, ok := body["data"].([]any)
			require.True(t, ok)
			require.Len(t, data, 1)
			user, ok := data[0].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, sub.ID.String(), user["id"])
			assert.Equal(t, "ada", user["username"])
			assert.Contains(t, user, "selectedProfession")
			assert.Contains(t, user, "taskSettings")
			subscription, ok := user["subscription"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "pro", subscription["tier"])
		})
	}
}
