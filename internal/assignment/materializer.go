package assignment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/metrics"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// Failure stages reported to metrics and logs.
const (
	stageCheckAssigned = "check_assigned"
	stageCreateTask    = "create_task"
	stageBoard         = "board"
	stageComplete      = "complete_task"
	stageServe         = "serve"
)

// MaterializeResult describes one subscriber's batch.
type MaterializeResult struct {
	BoardID uuid.UUID
	Created []uuid.UUID
	Titles  []string
	// Skipped counts templates found already assigned at creation time.
	Skipped int
	Failed  int
}

// Materializer turns picked templates into tasks on the subscriber's
// profession board.
type Materializer struct {
	catalog store.CatalogStore
	boards  store.BoardStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMaterializer creates a Materializer. m may be nil.
func NewMaterializer(
	catalog store.CatalogStore,
	boards store.BoardStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Materializer {
	return &Materializer{
		catalog: catalog,
		boards:  boards,
		metrics: m,
		logger:  logger.With("component", "materializer"),
	}
}

// Materialize creates one task per template, in order, at the tail of the
// board's todo column. Per-template failures are logged and skipped; an
// error is returned only when the board itself cannot be prepared.
func (m *Materializer) Materialize(
	ctx context.Context,
	sub *domain.Subscriber,
	templates []*domain.TaskTemplate,
	now time.Time,
) (MaterializeResult, error) {
	var res MaterializeResult
	if len(templates) == 0 {
		return res, nil
	}

	board, err := m.ensureBoard(ctx, sub, now)
	if err != nil {
		m.metrics.Failure(stageBoard)
		return res, NewServiceError("materialize", "failed to prepare board", err)
	}
	res.BoardID = board.ID

	log := m.logger.With("subscriber_id", sub.ID, "board_id", board.ID)
	for _, tmpl := range templates {
		assigned, err := m.boards.IsAssigned(ctx, sub.ID, tmpl.ID)
		if err != nil {
			log.Error("failed to check assignment",
				"template_id", tmpl.ID, "stage", stageCheckAssigned, "error", err)
			m.metrics.Failure(stageCheckAssigned)
			res.Failed++
			continue
		}
		if assigned {
			log.Warn("template assigned since it was picked",
				"template_id", tmpl.ID)
			m.metrics.Anomaly(metrics.AnomalyAlreadyAssigned)
			res.Skipped++
			continue
		}

		task := domain.NewAssignedTask(tmpl, sub.ID, board, domain.ColumnTodo, now)
		if err := m.boards.CreateAssignedTask(ctx, task); err != nil {
			if errors.Is(err, store.ErrAlreadyAssigned) {
				log.Warn("concurrent assignment detected",
					"template_id", tmpl.ID)
				m.metrics.Anomaly(metrics.AnomalyAlreadyAssigned)
				res.Skipped++
				continue
			}
			log.Error("failed to create task",
				"template_id", tmpl.ID, "stage", stageCreateTask, "error", err)
			m.metrics.Failure(stageCreateTask)
			res.Failed++
			continue
		}

		res.Created = append(res.Created, task.ID)
		res.Titles = append(res.Titles, task.Title)
	}

	log.Info("materialized batch",
		"created", len(res.Created),
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

// ensureBoard returns the subscriber's profession board, creating it with
// the default layout if missing. A board without a todo column gets one.
func (m *Materializer) ensureBoard(ctx context.Context, sub *domain.Subscriber, now time.Time) (*domain.Board, error) {
	professionID := *sub.Profession.ProfessionID

	board, err := m.boards.FindProfessionBoard(ctx, sub.ID, professionID)
	if err != nil && !store.IsNotFoundError(err) {
		return nil, err
	}

	if board == nil {
		profession, err := m.catalog.GetProfession(ctx, professionID)
		if err != nil {
			return nil, err
		}
		board = domain.NewProfessionBoard(sub.ID, profession, now)
		err = m.boards.CreateBoard(ctx, board)
		switch {
		case store.IsDuplicateError(err):
			// lost the creation race, use the winner's board
			board, err = m.boards.FindProfessionBoard(ctx, sub.ID, professionID)
			if err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			m.logger.Info("created profession board",
				"subscriber_id", sub.ID,
				"board_id", board.ID)
			return board, nil
		}
	}

	if _, ok := board.Column(domain.ColumnTodo); !ok {
		todo := domain.TodoColumn()
		if err := m.boards.AddColumn(ctx, board.ID, todo); err != nil && !store.IsDuplicateError(err) {
			return nil, err
		}
		board.Columns = append(board.Columns, todo)
	}
	return board, nil
}
