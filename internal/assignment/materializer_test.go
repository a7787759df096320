package assignment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialize_BoardCreationRace(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t)
	ctx := context.Background()

	var winner *domain.Board
	boards := &boardStoreStub{
		BoardStore: f.mem,
		CreateBoardFn: func(ctx context.Context, _ *domain.Board) error {
			winner = domain.NewProfessionBoard(sub.ID, f.profession, f.clock.Now())
			require.NoError(t, f.mem.CreateBoard(ctx, winner))
			return store.ErrBoardExists
		},
	}
	m := NewMaterializer(f.mem, boards, nil, discardLogger)

	res, err := m.Materialize(ctx, sub, f.templates[:2], f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.BoardID)
	assert.Len(t, res.Created, 2)
}

func TestMaterialize_AddsMissingTodoColumn(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t)
	ctx := context.Background()

	board := domain.NewProfessionBoard(sub.ID, f.profession, f.clock.Now())
	board.Columns = board.Columns[1:]
	require.NoError(t, f.mem.CreateBoard(ctx, board))

	m := NewMaterializer(f.mem, f.mem, nil, discardLogger)
	res, err := m.Materialize(ctx, sub, f.templates[:1], f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, board.ID, res.BoardID)

	stored := f.board(t, sub)
	_, ok := stored.Column(domain.ColumnTodo)
	assert.True(t, ok)
	tasks := f.tasks(t, sub)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.ColumnTodo, tasks[0].ColumnID)
}

func TestMaterialize_SkipsAlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t)
	ctx := context.Background()
	m := NewMaterializer(f.mem, f.mem, nil, discardLogger)

	first, err := m.Materialize(ctx, sub, f.templates[:2], f.clock.Now())
	require.NoError(t, err)
	require.Len(t, first.Created, 2)

	// stale pick that includes templates assigned in the meantime
	res, err := m.Materialize(ctx, sub, f.templates[:3], f.clock.Now())
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{f.templates[2].Title}, res.Titles)
}

func TestMaterialize_ConcurrentCreateIsAnomaly(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t)
	boards := &boardStoreStub{
		BoardStore: f.mem,
		IsAssignedFn: func(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
			return false, nil
		},
		CreateAssignedTaskFn: func(context.Context, *domain.TaskInstance) error {
			return store.ErrAlreadyAssigned
		},
	}
	m := NewMaterializer(f.mem, boards, nil, discardLogger)

	res, err := m.Materialize(context.Background(), sub, f.templates[:1], f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
}

func TestMaterialize_UnknownProfession(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t, func(s *domain.Subscriber) {
		require.NoError(t, s.SelectProfession(uuid.New(), "ghost", f.clock.Now()))
	})
	m := NewMaterializer(f.mem, f.mem, nil, discardLogger)

	_, err := m.Materialize(context.Background(), sub, f.templates[:1], f.clock.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrProfessionNotFound)
}

func TestMaterialize_Empty(t *testing.T) {
	f := newFixture(t)
	sub := f.addSubscriber(t)
	m := NewMaterializer(f.mem, f.mem, nil, discardLogger)

	res, err := m.Materialize(context.Background(), sub, nil, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, MaterializeResult{}, res)
}
