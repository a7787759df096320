package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/api/shared"
)

// Pinger checks a backing dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	db        Pinger
	scheduler SchedulerControl
	timeout   time.Duration
}

// NewHealthHandler creates a HealthHandler. db may be nil when the service
// runs on the in-memory store.
func NewHealthHandler(db Pinger, s SchedulerControl) *HealthHandler {
	return &HealthHandler{db: db, scheduler: s, timeout: 2 * time.Second}
}

// Health reports 200 when the database answers and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Scheduler: "stopped"}
	if st := h.scheduler.Status(); st.DailyAssignment.Scheduled || st.HourlyReconciliation.Scheduled {
		resp.Scheduler = "running"
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
