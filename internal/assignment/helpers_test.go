package assignment

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/memory"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.DiscardHandler)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// boardStoreStub overrides selected BoardStore methods, delegating the rest.
type boardStoreStub struct {
	store.BoardStore
	IsAssignedFn         func(ctx context.Context, subscriberID, templateID uuid.UUID) (bool, error)
	CreateAssignedTaskFn func(ctx context.Context, task *domain.TaskInstance) error
	CompleteTaskFn       func(ctx context.Context, taskID uuid.UUID, credit func(*domain.Subscriber) error) (bool, error)
	FindProfessionFn     func(ctx context.Context, ownerID, professionID uuid.UUID) (*domain.Board, error)
	CreateBoardFn        func(ctx context.Context, board *domain.Board) error
}

func (s *boardStoreStub) IsAssigned(ctx context.Context, subscriberID, templateID uuid.UUID) (bool, error) {
	if s.IsAssignedFn != nil {
		return s.IsAssignedFn(ctx, subscriberID, templateID)
	}
	return s.BoardStore.IsAssigned(ctx, subscriberID, templateID)
}

func (s *boardStoreStub) CreateAssignedTask(ctx context.Context, task *domain.TaskInstance) error {
	if s.CreateAssignedTaskFn != nil {
		return s.CreateAssignedTaskFn(ctx, task)
	}
	return s.BoardStore.CreateAssignedTask(ctx, task)
}

func (s *boardStoreStub) CompleteTask(ctx context.Context, taskID uuid.UUID, credit func(*domain.Subscriber) error) (bool, error) {
	if s.CompleteTaskFn != nil {
		return s.CompleteTaskFn(ctx, taskID, credit)
	}
	return s.BoardStore.CompleteTask(ctx, taskID, credit)
}

func (s *boardStoreStub) FindProfessionBoard(ctx context.Context, ownerID, professionID uuid.UUID) (*domain.Board, error) {
	if s.FindProfessionFn != nil {
		return s.FindProfessionFn(ctx, ownerID, professionID)
	}
	return s.BoardStore.FindProfessionBoard(ctx, ownerID, professionID)
}

func (s *boardStoreStub) CreateBoard(ctx context.Context, board *domain.Board) error {
	if s.CreateBoardFn != nil {
		return s.CreateBoardFn(ctx, board)
	}
	return s.BoardStore.CreateBoard(ctx, board)
}

// subscriberStoreStub overrides selected SubscriberStore methods.
type subscriberStoreStub struct {
	store.SubscriberStore
	ListTaskEligibleFn func(ctx context.Context) ([]*domain.Subscriber, error)
	ClaimFn            func(ctx context.Context, id uuid.UUID, dayStart, now time.Time) (bool, error)
	SetLastFn          func(ctx context.Context, id uuid.UUID, at *time.Time) error
}

func (s *subscriberStoreStub) SetLastAssignment(ctx context.Context, id uuid.UUID, at *time.Time) error {
	if s.SetLastFn != nil {
		return s.SetLastFn(ctx, id, at)
	}
	return s.SubscriberStore.SetLastAssignment(ctx, id, at)
}

func (s *subscriberStoreStub) ListTaskEligible(ctx context.Context) ([]*domain.Subscriber, error) {
	if s.ListTaskEligibleFn != nil {
		return s.ListTaskEligibleFn(ctx)
	}
	return s.SubscriberStore.ListTaskEligible(ctx)
}

func (s *subscriberStoreStub) ClaimDailyAssignment(ctx context.Context, id uuid.UUID, dayStart, now time.Time) (bool, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, id, dayStart, now)
	}
	return s.SubscriberStore.ClaimDailyAssignment(ctx, id, dayStart, now)
}

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingEmitter) EmitEvent(_ context.Context, e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) ofType(eventType string) []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	mem        *memory.Store
	profession *domain.Profession
	templates  []*domain.TaskTemplate
	cal        domain.Calendar
	clock      *testClock
	emitter    *recordingEmitter
}

// newFixture seeds a profession with five beginner templates at levels 1-5,
// inserted in reverse so ordering comes from the store.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cal, err := domain.NewCalendar(domain.DefaultTimezone)
	require.NoError(t, err)

	f := &fixture{
		mem:        memory.New(),
		profession: &domain.Profession{ID: uuid.New(), Name: "Backend Developer", Slug: "backend", IsActive: true},
		cal:        cal,
		clock:      newTestClock(time.Date(2024, 5, 20, 9, 0, 0, 0, cal.Location())),
		emitter:    &recordingEmitter{},
	}
	require.NoError(t, f.mem.CreateProfession(ctx, f.profession))

	f.templates = make([]*domain.TaskTemplate, 5)
	for level := 5; level >= 1; level-- {
		tmpl := &domain.TaskTemplate{
			ID:             uuid.New(),
			ProfessionID:   f.profession.ID,
			Title:          "Lesson " + string(rune('0'+level)),
			Category:       "http",
			Difficulty:     domain.DifficultyBeginner,
			Level:          level,
			EstimatedHours: 2,
			DeadlineDays:   7,
			Tags:           []string{"go", "http"},
			IsActive:       true,
			IsPublic:       true,
		}
		require.NoError(t, f.mem.CreateTemplate(ctx, tmpl))
		f.templates[level-1] = tmpl
	}
	return f
}

func (f *fixture) stores() Stores {
	return Stores{Subscribers: f.mem, Catalog: f.mem, Boards: f.mem}
}

// addSubscriber creates a premium subscriber of the fixture profession with
// a beginner filter.
func (f *fixture) addSubscriber(t *testing.T, mut ...func(*domain.Subscriber)) *domain.Subscriber {
	t.Helper()
	now := f.clock.Now()
	sub := domain.NewSubscriber("ada", "ada@example.com")
	require.NoError(t, sub.ChangeTier(domain.TierPremium, now))
	require.NoError(t, sub.SelectProfession(f.profession.ID, f.profession.Slug, now))
	sub.Settings.DifficultyFilter = domain.DifficultyBeginner
	for _, m := range mut {
		m(sub)
	}
	require.NoError(t, f.mem.Create(context.Background(), sub))
	return sub
}

func (f *fixture) service(t *testing.T, stores Stores, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(f.clock.Now), WithEmitter(f.emitter)}, opts...)
	svc, err := NewService(stores, f.cal, discardLogger, opts...)
	require.NoError(t, err)
	return svc
}

func (f *fixture) board(t *testing.T, sub *domain.Subscriber) *domain.Board {
	t.Helper()
	board, err := f.mem.FindProfessionBoard(context.Background(), sub.ID, f.profession.ID)
	require.NoError(t, err)
	return board
}

func (f *fixture) tasks(t *testing.T, sub *domain.Subscriber) []*domain.TaskInstance {
	t.Helper()
	tasks, err := f.mem.ListTasks(context.Background(), f.board(t, sub).ID)
	require.NoError(t, err)
	return tasks
}

func (f *fixture) reload(t *testing.T, sub *domain.Subscriber) *domain.Subscriber {
	t.Helper()
	got, err := f.mem.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	return got
}
