package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/postgres"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "tasks",
		ColumnName:     "title",
		ConstraintName: constraint,
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", newPgError("23505", "task_assignments_pkey"), store.ErrDuplicate},
		{"wrapped unique violation", fmt.Errorf("insert: %w", newPgError("23505", "x")), store.ErrDuplicate},
		{"foreign key", newPgError("23503", "tasks_board_id_fkey"), store.ErrInvalidEntity},
		{"check", newPgError("23514", "subscribers_streak_days_check"), store.ErrInvalidEntity},
		{"not null", newPgError("23502", ""), store.ErrInvalidEntity},
		{"connection failure", newPgError("08006", ""), store.ErrUnavailable},
		{"conn done", sql.ErrConnDone, store.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error is preserved")
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.MapError(nil))

	plain := errors.New("syntax error at or near")
	assert.Same(t, plain, postgres.MapError(plain))

	other := newPgError("42601", "")
	assert.Equal(t, error(other), postgres.MapError(other))
}

func TestViolationHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505", "")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503", "")))
	assert.False(t, postgres.IsUniqueViolation(nil))
	assert.True(t, postgres.IsForeignKeyViolation(newPgError("23503", "")))
	assert.False(t, postgres.IsForeignKeyViolation(errors.New("boom")))
}

type rowsAffected int64

func (r rowsAffected) LastInsertId() (int64, error) { return 0, nil }
func (r rowsAffected) RowsAffected() (int64, error) { return int64(r), nil }

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(rowsAffected(1), store.ErrTaskNotFound))
	assert.ErrorIs(t, postgres.CheckRowsAffected(rowsAffected(0), store.ErrTaskNotFound), store.ErrTaskNotFound)
	assert.Error(t, postgres.CheckRowsAffected(nil, store.ErrTaskNotFound))
}
