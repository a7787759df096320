//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/postgres"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("taskboard"),
		tcpostgres.WithUsername("taskboard"),
		tcpostgres.WithPassword("taskboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, postgres.Migrate(ctx, db, "up", log))
	return db
}

type fixture struct {
	subscribers *postgres.PostgresSubscriberStore
	catalog     *postgres.PostgresCatalogStore
	boards      *postgres.PostgresBoardStore
	profession  *domain.Profession
	templates   []*domain.TaskTemplate
	subscriber  *domain.Subscriber
}

func seed(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		subscribers: postgres.NewPostgresSubscriberStore(db),
		catalog:     postgres.NewPostgresCatalogStore(db),
		boards:      postgres.NewPostgresBoardStore(db),
		profession:  &domain.Profession{ID: uuid.New(), Name: "Backend Developer", Slug: "backend", IsActive: true},
	}
	require.NoError(t, f.catalog.CreateProfession(ctx, f.profession))

	for level := 5; level >= 1; level-- {
		tmpl := &domain.TaskTemplate{
			ID:             uuid.New(),
			ProfessionID:   f.profession.ID,
			Title:          "Lesson",
			Category:       "http",
			Difficulty:     domain.DifficultyBeginner,
			Level:          level,
			EstimatedHours: 1,
			DeadlineDays:   7,
			Tags:           []string{"go"},
			IsActive:       true,
			IsPublic:       true,
		}
		require.NoError(t, f.catalog.CreateTemplate(ctx, tmpl))
		f.templates = append(f.templates, tmpl)
	}

	sub := domain.NewSubscriber("ada", "ada@example.com")
	require.NoError(t, sub.ChangeTier(domain.TierPremium, time.Now().UTC()))
	require.NoError(t, sub.SelectProfession(f.profession.ID, f.profession.Slug, time.Now().UTC()))
	require.NoError(t, f.subscribers.Create(ctx, sub))
	f.subscriber = sub
	return f
}

func TestPostgresStores_AssignmentLifecycle(t *testing.T) {
	db := setupDatabase(t)
	f := seed(t, db)
	ctx := context.Background()

	eligible, err := f.subscribers.ListTaskEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, f.subscriber.ID, eligible[0].ID)
	assert.Equal(t, 3, eligible[0].Settings.DailyTaskLimit)

	picked, err := f.catalog.FindAvailableTemplates(ctx, store.TemplateQuery{
		ProfessionID: f.profession.ID,
		SubscriberID: f.subscriber.ID,
		Difficulty:   domain.DifficultyBeginner,
		Limit:        3,
	})
	require.NoError(t, err)
	require.Len(t, picked, 3)
	for i, tmpl := range picked {
		assert.Equal(t, i+1, tmpl.Level)
	}

	_, err = f.boards.FindProfessionBoard(ctx, f.subscriber.ID, f.profession.ID)
	require.ErrorIs(t, err, store.ErrBoardNotFound)

	now := time.Now().UTC()
	board := domain.NewProfessionBoard(f.subscriber.ID, f.profession, now)
	require.NoError(t, f.boards.CreateBoard(ctx, board))
	dup := domain.NewProfessionBoard(f.subscriber.ID, f.profession, now)
	require.ErrorIs(t, f.boards.CreateBoard(ctx, dup), store.ErrBoardExists)

	loaded, err := f.boards.FindProfessionBoard(ctx, f.subscriber.ID, f.profession.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Columns, 4)

	var created []*domain.TaskInstance
	for i, tmpl := range picked {
		task := domain.NewAssignedTask(tmpl, f.subscriber.ID, loaded, domain.ColumnTodo, now)
		require.NoError(t, f.boards.CreateAssignedTask(ctx, task))
		assert.Equal(t, i, task.Order)
		created = append(created, task)
	}

	again := domain.NewAssignedTask(picked[0], f.subscriber.ID, loaded, domain.ColumnTodo, now)
	require.ErrorIs(t, f.boards.CreateAssignedTask(ctx, again), store.ErrAlreadyAssigned)

	assigned, err := f.boards.IsAssigned(ctx, f.subscriber.ID, picked[0].ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	remaining, err := f.catalog.FindAvailableTemplates(ctx, store.TemplateQuery{
		ProfessionID: f.profession.ID,
		SubscriberID: f.subscriber.ID,
		Limit:        10,
	})
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "assigned templates are excluded")

	_, err = db.ExecContext(ctx, `UPDATE tasks SET status = 'completed' WHERE id = $1`, created[0].ID)
	require.NoError(t, err)

	completed, err := f.boards.ListCompletedAutoAssigned(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, picked[0].ID, completed[0].Assignment.SourceTemplateID)
	assert.Equal(t, []domain.Tag{{Name: "go", Color: domain.TagColor("go")}}, completed[0].Tags)

	archived, err := f.boards.Archive(ctx, created[0].ID)
	require.NoError(t, err)
	assert.True(t, archived)
	archived, err = f.boards.Archive(ctx, created[0].ID)
	require.NoError(t, err)
	assert.False(t, archived)

	stillAssigned, err := f.boards.IsAssigned(ctx, f.subscriber.ID, picked[0].ID)
	require.NoError(t, err)
	assert.True(t, stillAssigned, "archived tasks keep blocking re-assignment")
}

func TestPostgresSubscriberStore_ClaimAndStats(t *testing.T) {
	db := setupDatabase(t)
	f := seed(t, db)
	ctx := context.Background()

	cal, err := domain.NewCalendar(domain.DefaultTimezone)
	require.NoError(t, err)
	now := time.Now().UTC()
	dayStart := cal.DayStart(now)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := f.subscribers.ClaimDailyAssignment(ctx, f.subscriber.ID, dayStart, now)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one concurrent claim wins")

	err = f.subscribers.UpdateStats(ctx, f.subscriber.ID, func(s *domain.Subscriber) error {
		s.RecordCompletion(cal, now)
		return nil
	})
	require.NoError(t, err)

	sub, err := f.subscribers.GetByID(ctx, f.subscriber.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Settings.CompletedTaskCount)
	assert.Equal(t, 1, sub.Settings.StreakDays)
	require.NotNil(t, sub.Settings.LastAssignmentAt)

	require.NoError(t, f.subscribers.SetLastAssignment(ctx, f.subscriber.ID, nil))
	sub, err = f.subscribers.GetByID(ctx, f.subscriber.ID)
	require.NoError(t, err)
	assert.Nil(t, sub.Settings.LastAssignmentAt)

	stats, err := f.subscribers.TierStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, domain.TierPremium, stats[0].Tier)
	assert.Equal(t, 1, stats[0].Subscribers)
	assert.InDelta(t, 1.0, stats[0].AverageCompleted, 0.001)

	_, err = f.subscribers.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrSubscriberNotFound)
}
