package assignment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// PassRunner runs a full assignment pass.
type PassRunner interface {
	AssignAll(ctx context.Context) (PassResult, error)
}

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	Completed  int        `json:"completed"`
	Archived   int        `json:"archived"`
	Failed     int        `json:"failed"`
	Assignment PassResult `json:"assignment"`
}

// Reconciler archives completed auto-assigned tasks, credits subscribers
// for them and then runs an assignment pass.
type Reconciler struct {
	boards   store.BoardStore
	assigner PassRunner
	cal      domain.Calendar
	opts     options
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	stores Stores,
	assigner PassRunner,
	cal domain.Calendar,
	logger *slog.Logger,
	opts ...Option,
) (*Reconciler, error) {
	if err := stores.validate(); err != nil {
		return nil, &ServiceError{Operation: "create_reconciler", Message: "invalid dependencies", Err: err}
	}
	if assigner == nil {
		return nil, &ServiceError{
			Operation: "create_reconciler",
			Message:   "invalid dependencies",
			Err:       errors.New("assigner cannot be nil"),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		boards:   stores.Boards,
		assigner: assigner,
		cal:      cal,
		opts:     buildOptions(opts),
		logger:   logger.With("component", "reconciler"),
	}, nil
}

type completion struct {
	taskIDs []uuid.UUID
	latest  domain.TaskSettings
}

// Reconcile processes every completed, auto-assigned task that is not yet
// archived. Archiving a task and crediting its assignee commit together:
// only the run that archived it credits the subscriber, and a failed credit
// leaves the task in place for the next run.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	tasks, err := r.boards.ListCompletedAutoAssigned(ctx)
	if err != nil {
		return res, NewServiceError("reconcile", "failed to list completed tasks", err)
	}
	res.Completed = len(tasks)

	var (
		order     []uuid.UUID
		completed = make(map[uuid.UUID]*completion)
	)
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		log := r.logger.With("task_id", task.ID, "subscriber_id", task.AssigneeID)

		var settings domain.TaskSettings
		archived, err := r.boards.CompleteTask(ctx, task.ID, func(sub *domain.Subscriber) error {
			sub.RecordCompletion(r.cal, r.opts.now())
			settings = sub.Settings
			return nil
		})
		if err != nil {
			log.Error("failed to complete task", "stage", stageComplete, "error", err)
			r.opts.metrics.Failure(stageComplete)
			res.Failed++
			continue
		}
		if !archived {
			log.Debug("task archived by a concurrent run")
			continue
		}
		res.Archived++
		r.opts.metrics.TaskArchived()

		c, ok := completed[task.AssigneeID]
		if !ok {
			c = &completion{}
			completed[task.AssigneeID] = c
			order = append(order, task.AssigneeID)
		}
		c.taskIDs = append(c.taskIDs, task.ID)
		c.latest = settings
	}

	for _, id := range order {
		r.notify(ctx, id, completed[id])
	}

	r.logger.Info("reconciled completed tasks",
		"completed", res.Completed,
		"archived", res.Archived,
		"failed", res.Failed)

	if err := ctx.Err(); err != nil {
		return res, NewServiceError("reconcile", "run interrupted", err)
	}

	pass, err := r.assigner.AssignAll(ctx)
	res.Assignment = pass
	if err != nil {
		return res, err
	}
	return res, nil
}

func (r *Reconciler) notify(ctx context.Context, subscriberID uuid.UUID, c *completion) {
	event, err := events.NewEvent(events.TypeTasksCompleted, subscriberID, events.TasksCompletedPayload{
		TaskIDs:            c.taskIDs,
		CompletedTaskCount: c.latest.CompletedTaskCount,
		StreakDays:         c.latest.StreakDays,
	})
	if err == nil {
		err = r.opts.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		r.logger.Warn("failed to emit completion event",
			"subscriber_id", subscriberID,
			"error", err)
	}
}
