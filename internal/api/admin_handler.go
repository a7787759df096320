package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/api/shared"
	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/logger"
	"github.com/phrazzld/taskboard-scheduler/internal/scheduler"
)

// SchedulerControl is the part of the scheduler operators drive.
type SchedulerControl interface {
	RunAssignmentNow(ctx context.Context) (assignment.PassResult, error)
	RunReconciliationNow(ctx context.Context) (assignment.ReconcileResult, error)
	Status() scheduler.Status
}

// SubscriberAssigner serves single subscribers and reports on paid
// subscribers.
type SubscriberAssigner interface {
	AssignToSubscriber(ctx context.Context, id uuid.UUID) (int, error)
	Stats(ctx context.Context) (assignment.Stats, error)
	ListPaid(ctx context.Context, page, limit int) (assignment.SubscriberPage, error)
}

// AdminHandler handles the /admin routes.
type AdminHandler struct {
	scheduler SchedulerControl
	assigner  SubscriberAssigner
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(s SchedulerControl, a SubscriberAssigner, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{
		scheduler: s,
		assigner:  a,
		logger:    log.With("component", "admin_handler"),
	}
}

func (h *AdminHandler) log(r *http.Request) *slog.Logger {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if claims, ok := shared.GetClaims(r.Context()); ok {
		log = log.With("operator", claims.Subject)
	}
	return log
}

// AssignTasksNow runs an assignment pass over every due subscriber.
func (h *AdminHandler) AssignTasksNow(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	log.Info("manual assignment requested")

	res, err := h.scheduler.RunAssignmentNow(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to run assignment")
		return
	}

	log.Info("manual assignment finished",
		"considered", res.Considered,
		"assigned_tasks", res.AssignedTasks)
	shared.RespondWithJSON(w, r, http.StatusOK, AssignNowResponse(res))
}

// CheckCompletedTasksNow archives completed tasks and tops boards up.
func (h *AdminHandler) CheckCompletedTasksNow(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	log.Info("manual reconciliation requested")

	res, err := h.scheduler.RunReconciliationNow(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check completed tasks")
		return
	}

	log.Info("manual reconciliation finished",
		"completed", res.Completed,
		"archived", res.Archived)
	shared.RespondWithJSON(w, r, http.StatusOK, newCheckCompletedResponse(res))
}

// SchedulerStatus reports both scheduler jobs.
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.scheduler.Status())
}

// AssignTasksToUser serves one subscriber immediately, regardless of
// whether they already got today's batch.
func (h *AdminHandler) AssignTasksToUser(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	log := h.log(r).With("subscriber_id", id)

	n, err := h.assigner.AssignToSubscriber(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign tasks")
		return
	}

	log.Info("manual subscriber assignment finished", "assigned_count", n)
	shared.RespondWithJSON(w, r, http.StatusOK, AssignToUserResponse{AssignedCount: n})
}

// PremiumUsersStats reports progress per paid tier.
func (h *AdminHandler) PremiumUsersStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.assigner.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load subscriber stats")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// PremiumUsers lists active paid subscribers with their profession and task
// settings, one page at a time.
func (h *AdminHandler) PremiumUsers(w http.ResponseWriter, r *http.Request) {
	page, err := getQueryInt(r, "page", 1)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := getQueryInt(r, "limit", assignment.DefaultPageLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.assigner.ListPaid(r.Context(), page, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list premium users")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newPremiumUsersResponse(res))
}
