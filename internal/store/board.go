package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
)

// BoardStore defines the interface for boards, columns and task instances.
//
// Assignments are indexed by (subscriber, template). The index is written in
// the same unit of work as the task it points to and is never removed, so an
// archived task still blocks re-assignment of its template.
type BoardStore interface {
	// FindProfessionBoard returns the owner's auto-task board for a profession.
	// Returns ErrBoardNotFound if none exists.
	FindProfessionBoard(ctx context.Context, ownerID, professionID uuid.UUID) (*domain.Board, error)

	// CreateBoard saves a new board with its columns.
	// Returns ErrBoardExists if the owner already has a board of the same
	// kind for the profession.
	CreateBoard(ctx context.Context, board *domain.Board) error

	// AddColumn appends a column to an existing board.
	AddColumn(ctx context.Context, boardID uuid.UUID, column domain.Column) error

	// IsAssigned reports whether the template was ever assigned to the subscriber.
	IsAssigned(ctx context.Context, subscriberID, templateID uuid.UUID) (bool, error)

	// CreateAssignedTask atomically appends the task to the tail of its
	// column, setting task.Order to the column's max order + 1 (0 when
	// empty), and records the (assignee, source template) assignment.
	// Returns ErrAlreadyAssigned if the pair is already recorded.
	CreateAssignedTask(ctx context.Context, task *domain.TaskInstance) error

	// ListCompletedAutoAssigned returns completed, auto-assigned tasks that
	// have not been archived.
	ListCompletedAutoAssigned(ctx context.Context) ([]*domain.TaskInstance, error)

	// Archive marks a task archived. It reports whether this call archived
	// it; false means it was already archived.
	// Returns ErrTaskNotFound if the task does not exist.
	Archive(ctx context.Context, taskID uuid.UUID) (bool, error)

	// CompleteTask archives a task and applies credit to its assignee's
	// counters in one unit of work. It reports whether this call archived
	// the task; false means it was already archived and credit was not
	// applied. When credit or the subscriber save fails nothing is written.
	// Returns ErrTaskNotFound if the task does not exist.
	CompleteTask(ctx context.Context, taskID uuid.UUID, credit func(*domain.Subscriber) error) (bool, error)

	// ListTasks returns the non-archived tasks of a board ordered by column
	// and order.
	ListTasks(ctx context.Context, boardID uuid.UUID) ([]*domain.TaskInstance, error)
}
