package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/logger"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

const (
	boardUniqueConstraint      = "uq_boards_owner_profession_kind"
	assignmentPrimaryKeyConstr = "task_assignments_pkey"
)

const taskColumns = `
	id, board_id, column_id, title, description, status, priority, assignee_id,
	due_date, estimated_hours, tags, sort_order, is_archived,
	source_template_id, profession_slug, category, difficulty, auto_assigned, assigned_at,
	created_at, updated_at`

// PostgresBoardStore implements store.BoardStore on PostgreSQL.
type PostgresBoardStore struct {
	db *sql.DB
}

// NewPostgresBoardStore creates a board store on an open database handle.
func NewPostgresBoardStore(db *sql.DB) *PostgresBoardStore {
	return &PostgresBoardStore{db: db}
}

var _ store.BoardStore = (*PostgresBoardStore)(nil)

// FindProfessionBoard implements store.BoardStore.FindProfessionBoard
func (s *PostgresBoardStore) FindProfessionBoard(
	ctx context.Context,
	ownerID, professionID uuid.UUID,
) (*domain.Board, error) {
	var (
		b            domain.Board
		professionNS uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, profession_id, profession_slug, name, description, kind, created_at, updated_at
		FROM boards
		WHERE owner_id = $1 AND profession_id = $2 AND kind = $3`,
		ownerID, professionID, domain.BoardKindProfessionTasks,
	).Scan(&b.ID, &b.OwnerID, &professionNS, &b.ProfessionSlug, &b.Name, &b.Description, &b.Kind,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBoardNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	b.ProfessionID = professionNS.UUID

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sort_order, color FROM board_columns
		WHERE board_id = $1 ORDER BY sort_order, id`, b.ID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.Name, &c.Order, &c.Color); err != nil {
			return nil, MapError(err)
		}
		b.Columns = append(b.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return &b, nil
}

// CreateBoard implements store.BoardStore.CreateBoard
func (s *PostgresBoardStore) CreateBoard(ctx context.Context, board *domain.Board) error {
	if err := board.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO boards (id, owner_id, profession_id, profession_slug, name, description, kind, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			board.ID, board.OwnerID, board.ProfessionID, board.ProfessionSlug,
			board.Name, board.Description, board.Kind, board.CreatedAt, board.UpdatedAt,
		)
		if uniqueConstraint(err) == boardUniqueConstraint {
			return fmt.Errorf("%w: %v", store.ErrBoardExists, err)
		}
		if err != nil {
			return MapError(err)
		}

		for _, c := range board.Columns {
			if err := insertColumn(ctx, tx, board.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddColumn implements store.BoardStore.AddColumn
func (s *PostgresBoardStore) AddColumn(ctx context.Context, boardID uuid.UUID, column domain.Column) error {
	return insertColumn(ctx, s.db, boardID, column)
}

func insertColumn(ctx context.Context, db store.DBTX, boardID uuid.UUID, c domain.Column) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO board_columns (board_id, id, name, sort_order, color)
		VALUES ($1, $2, $3, $4, $5)`,
		boardID, c.ID, c.Name, c.Order, c.Color,
	)
	if IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrBoardNotFound, err)
	}
	return MapError(err)
}

// IsAssigned implements store.BoardStore.IsAssigned
func (s *PostgresBoardStore) IsAssigned(ctx context.Context, subscriberID, templateID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM task_assignments WHERE subscriber_id = $1 AND template_id = $2
		)`, subscriberID, templateID,
	).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// CreateAssignedTask implements store.BoardStore.CreateAssignedTask.
// The board row lock serializes concurrent appends, so orders within a
// column stay strictly increasing in insertion order.
func (s *PostgresBoardStore) CreateAssignedTask(ctx context.Context, task *domain.TaskInstance) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode task tags: %w", err)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM boards WHERE id = $1 FOR UPDATE`, task.BoardID,
		).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrBoardNotFound
		}
		if err != nil {
			return MapError(err)
		}

		var order int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks
			WHERE board_id = $1 AND column_id = $2`,
			task.BoardID, task.ColumnID,
		).Scan(&order); err != nil {
			return MapError(err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			task.ID, task.BoardID, task.ColumnID, task.Title, task.Description,
			task.Status, task.Priority, task.AssigneeID,
			nullTime(task.DueDate), task.EstimatedHours, string(tags), order, task.IsArchived,
			task.Assignment.SourceTemplateID, task.Assignment.ProfessionSlug, task.Assignment.Category,
			task.Assignment.Difficulty, task.Assignment.AutoAssigned, task.Assignment.AssignedAt,
			task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return MapError(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_assignments (subscriber_id, template_id, task_id, assigned_at)
			VALUES ($1, $2, $3, $4)`,
			task.AssigneeID, task.Assignment.SourceTemplateID, task.ID, task.Assignment.AssignedAt,
		)
		if uniqueConstraint(err) == assignmentPrimaryKeyConstr {
			return fmt.Errorf("%w: %v", store.ErrAlreadyAssigned, err)
		}
		if err != nil {
			return MapError(err)
		}

		task.Order = order
		return nil
	})
}

// ListCompletedAutoAssigned implements store.BoardStore.ListCompletedAutoAssigned
func (s *PostgresBoardStore) ListCompletedAutoAssigned(ctx context.Context) ([]*domain.TaskInstance, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status = $1 AND auto_assigned AND NOT is_archived
		ORDER BY updated_at, id`, domain.TaskStatusCompleted)
}

// ListTasks implements store.BoardStore.ListTasks
func (s *PostgresBoardStore) ListTasks(ctx context.Context, boardID uuid.UUID) ([]*domain.TaskInstance, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE board_id = $1 AND NOT is_archived
		ORDER BY column_id, sort_order`, boardID)
}

// Archive implements store.BoardStore.Archive
func (s *PostgresBoardStore) Archive(ctx context.Context, taskID uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_archived = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_archived`,
		taskID, time.Now().UTC(),
	)
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID,
	).Scan(&exists); err != nil {
		return false, MapError(err)
	}
	if !exists {
		return false, store.ErrTaskNotFound
	}
	logger.FromContext(ctx).Debug("task already archived", slog.String("task_id", taskID.String()))
	return false, nil
}

// CompleteTask implements store.BoardStore.CompleteTask. The conditional
// archive takes the task row lock, so concurrent runs credit it once.
func (s *PostgresBoardStore) CompleteTask(
	ctx context.Context,
	taskID uuid.UUID,
	credit func(*domain.Subscriber) error,
) (bool, error) {
	var archived bool
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var assigneeID uuid.UUID
		err := tx.QueryRowContext(ctx, `
			UPDATE tasks SET is_archived = TRUE, updated_at = $2
			WHERE id = $1 AND NOT is_archived
			RETURNING assignee_id`,
			taskID, time.Now().UTC(),
		).Scan(&assigneeID)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID,
			).Scan(&exists); err != nil {
				return MapError(err)
			}
			if !exists {
				return store.ErrTaskNotFound
			}
			return nil
		}
		if err != nil {
			return MapError(err)
		}

		if err := updateSubscriberStats(ctx, tx, assigneeID, credit); err != nil {
			return err
		}
		archived = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !archived {
		logger.FromContext(ctx).Debug("task already archived", slog.String("task_id", taskID.String()))
	}
	return archived, nil
}

func (s *PostgresBoardStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.TaskInstance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.TaskInstance
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*domain.TaskInstance, error) {
	var (
		t                 domain.TaskInstance
		dueDate, assigned sql.NullTime
		sourceTemplate    uuid.NullUUID
		tags              []byte
	)
	err := row.Scan(
		&t.ID, &t.BoardID, &t.ColumnID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeID,
		&dueDate, &t.EstimatedHours, &tags, &t.Order, &t.IsArchived,
		&sourceTemplate, &t.Assignment.ProfessionSlug, &t.Assignment.Category, &t.Assignment.Difficulty,
		&t.Assignment.AutoAssigned, &assigned,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, MapError(err)
	}
	t.DueDate = timePtr(dueDate)
	t.Assignment.SourceTemplateID = sourceTemplate.UUID
	if assigned.Valid {
		t.Assignment.AssignedAt = assigned.Time
	}
	if err := json.Unmarshal(tags, &t.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode task tags: %w", err)
	}
	return &t, nil
}
