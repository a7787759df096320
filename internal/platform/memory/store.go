// Package memory provides an in-process implementation of the subscriber,
// catalog and board stores. All three share one lock so multi-entity
// operations are atomic, mirroring the transactional guarantees of the
// Postgres implementation.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

type assignmentKey struct {
	subscriber uuid.UUID
	template   uuid.UUID
}

type boardKey struct {
	owner      uuid.UUID
	profession uuid.UUID
}

// Store is an in-memory subscriber registry, catalog and board store.
// Values are copied on the way in and out.
type Store struct {
	mu sync.Mutex

	subscribers map[uuid.UUID]*domain.Subscriber
	professions map[uuid.UUID]*domain.Profession
	templates   map[uuid.UUID]*domain.TaskTemplate
	boards      map[uuid.UUID]*domain.Board
	boardIndex  map[boardKey]uuid.UUID
	tasks       map[uuid.UUID]*domain.TaskInstance
	assignments map[assignmentKey]uuid.UUID
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		subscribers: make(map[uuid.UUID]*domain.Subscriber),
		professions: make(map[uuid.UUID]*domain.Profession),
		templates:   make(map[uuid.UUID]*domain.TaskTemplate),
		boards:      make(map[uuid.UUID]*domain.Board),
		boardIndex:  make(map[boardKey]uuid.UUID),
		tasks:       make(map[uuid.UUID]*domain.TaskInstance),
		assignments: make(map[assignmentKey]uuid.UUID),
	}
}

var (
	_ store.SubscriberStore = (*Store)(nil)
	_ store.CatalogStore    = (*Store)(nil)
	_ store.BoardStore      = (*Store)(nil)
)

// Create implements store.SubscriberStore.Create
func (s *Store) Create(_ context.Context, sub *domain.Subscriber) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[sub.ID]; ok {
		return fmt.Errorf("%w: subscriber %s", store.ErrDuplicate, sub.ID)
	}
	s.subscribers[sub.ID] = copySubscriber(sub)
	return nil
}

// GetByID implements store.SubscriberStore.GetByID
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, store.ErrSubscriberNotFound
	}
	return copySubscriber(sub), nil
}

// ListTaskEligible implements store.SubscriberStore.ListTaskEligible
func (s *Store) ListTaskEligible(_ context.Context) ([]*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []*domain.Subscriber
	for _, sub := range s.subscribers {
		if sub.IsTaskEligible() {
			subs = append(subs, copySubscriber(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID.String() < subs[j].ID.String() })
	return subs, nil
}

// ClaimDailyAssignment implements store.SubscriberStore.ClaimDailyAssignment
func (s *Store) ClaimDailyAssignment(_ context.Context, id uuid.UUID, dayStart, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return false, nil
	}
	last := sub.Settings.LastAssignmentAt
	if last != nil && !last.Before(dayStart) {
		return false, nil
	}
	at := now
	sub.Settings.LastAssignmentAt = &at
	sub.UpdatedAt = now
	return true, nil
}

// SetLastAssignment implements store.SubscriberStore.SetLastAssignment
func (s *Store) SetLastAssignment(_ context.Context, id uuid.UUID, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return store.ErrSubscriberNotFound
	}
	sub.Settings.LastAssignmentAt = copyTime(at)
	return nil
}

// UpdateStats implements store.SubscriberStore.UpdateStats
func (s *Store) UpdateStats(_ context.Context, id uuid.UUID, fn func(*domain.Subscriber) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStatsLocked(id, fn)
}

func (s *Store) updateStatsLocked(id uuid.UUID, fn func(*domain.Subscriber) error) error {
	current, ok := s.subscribers[id]
	if !ok {
		return store.ErrSubscriberNotFound
	}
	working := copySubscriber(current)
	if err := fn(working); err != nil {
		return err
	}
	if err := working.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	current.Settings.CompletedTaskCount = working.Settings.CompletedTaskCount
	current.Settings.StreakDays = working.Settings.StreakDays
	current.Settings.LastCompletionAt = copyTime(working.Settings.LastCompletionAt)
	current.UpdatedAt = working.UpdatedAt
	return nil
}

// TierStats implements store.SubscriberStore.TierStats
func (s *Store) TierStats(_ context.Context) ([]store.TierStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTier := make(map[domain.SubscriptionTier]*store.TierStats)
	for _, sub := range s.subscribers {
		if !isActivePaid(sub) {
			continue
		}
		ts, ok := byTier[sub.Subscription.Tier]
		if !ok {
			ts = &store.TierStats{Tier: sub.Subscription.Tier}
			byTier[sub.Subscription.Tier] = ts
		}
		ts.Subscribers++
		ts.AverageCompleted += float64(sub.Settings.CompletedTaskCount)
		ts.AverageStreak += float64(sub.Settings.StreakDays)
	}

	stats := make([]store.TierStats, 0, len(byTier))
	for _, ts := range byTier {
		ts.AverageCompleted /= float64(ts.Subscribers)
		ts.AverageStreak /= float64(ts.Subscribers)
		stats = append(stats, *ts)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Tier < stats[j].Tier })
	return stats, nil
}

// CountWithActiveProfession implements store.SubscriberStore.CountWithActiveProfession
func (s *Store) CountWithActiveProfession(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.subscribers {
		if isActivePaid(sub) && sub.Profession.IsActive {
			n++
		}
	}
	return n, nil
}

// ListPaidSubscribers implements store.SubscriberStore.ListPaidSubscribers
func (s *Store) ListPaidSubscribers(_ context.Context, page, limit int) ([]*domain.Subscriber, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paid []*domain.Subscriber
	for _, sub := range s.subscribers {
		if isActivePaid(sub) {
			paid = append(paid, sub)
		}
	}
	sort.Slice(paid, func(i, j int) bool {
		a, b := paid[i].Subscription.StartedAt, paid[j].Subscription.StartedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case (a == nil) != (b == nil):
			return a != nil
		}
		return paid[i].ID.String() < paid[j].ID.String()
	})

	total := len(paid)
	start := (page - 1) * limit
	if page < 1 || limit < 1 || start >= total {
		return []*domain.Subscriber{}, total, nil
	}
	end := min(start+limit, total)

	out := make([]*domain.Subscriber, 0, end-start)
	for _, sub := range paid[start:end] {
		out = append(out, copySubscriber(sub))
	}
	return out, total, nil
}

func isActivePaid(sub *domain.Subscriber) bool {
	return sub.Subscription.Tier != domain.TierFree && sub.Subscription.Status == domain.StatusActive
}

// GetProfession implements store.CatalogStore.GetProfession
func (s *Store) GetProfession(_ context.Context, id uuid.UUID) (*domain.Profession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.professions[id]
	if !ok {
		return nil, store.ErrProfessionNotFound
	}
	cp := *p
	return &cp, nil
}

// FindAvailableTemplates implements store.CatalogStore.FindAvailableTemplates
func (s *Store) FindAvailableTemplates(_ context.Context, q store.TemplateQuery) ([]*domain.TaskTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.TaskTemplate
	for _, t := range s.templates {
		if t.ProfessionID != q.ProfessionID || !t.IsActive || !t.IsPublic {
			continue
		}
		if q.Difficulty != "" && q.Difficulty != domain.DifficultyAll && t.Difficulty != q.Difficulty {
			continue
		}
		if len(q.Categories) > 0 && !slices.Contains(q.Categories, t.Category) {
			continue
		}
		if _, taken := s.assignments[assignmentKey{q.SubscriberID, t.ID}]; taken {
			continue
		}
		out = append(out, copyTemplate(t))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CreateProfession implements store.CatalogStore.CreateProfession
func (s *Store) CreateProfession(_ context.Context, p *domain.Profession) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.professions {
		if existing.ID == p.ID || existing.Slug == p.Slug {
			return fmt.Errorf("%w: profession %s", store.ErrDuplicate, p.Slug)
		}
	}
	cp := *p
	s.professions[p.ID] = &cp
	return nil
}

// CreateTemplate implements store.CatalogStore.CreateTemplate
func (s *Store) CreateTemplate(_ context.Context, t *domain.TaskTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.professions[t.ProfessionID]; !ok {
		return fmt.Errorf("%w: unknown profession %s", store.ErrInvalidEntity, t.ProfessionID)
	}
	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("%w: template %s", store.ErrDuplicate, t.ID)
	}
	s.templates[t.ID] = copyTemplate(t)
	return nil
}

// FindProfessionBoard implements store.BoardStore.FindProfessionBoard
func (s *Store) FindProfessionBoard(_ context.Context, ownerID, professionID uuid.UUID) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.boardIndex[boardKey{ownerID, professionID}]
	if !ok {
		return nil, store.ErrBoardNotFound
	}
	return copyBoard(s.boards[id]), nil
}

// CreateBoard implements store.BoardStore.CreateBoard
func (s *Store) CreateBoard(_ context.Context, board *domain.Board) error {
	if err := board.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := boardKey{board.OwnerID, board.ProfessionID}
	if board.Kind == domain.BoardKindProfessionTasks {
		if _, exists := s.boardIndex[key]; exists {
			return store.ErrBoardExists
		}
		s.boardIndex[key] = board.ID
	}
	s.boards[board.ID] = copyBoard(board)
	return nil
}

// AddColumn implements store.BoardStore.AddColumn
func (s *Store) AddColumn(_ context.Context, boardID uuid.UUID, column domain.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[boardID]
	if !ok {
		return store.ErrBoardNotFound
	}
	if _, exists := b.Column(column.ID); exists {
		return fmt.Errorf("%w: column %s", store.ErrDuplicate, column.ID)
	}
	b.Columns = append(b.Columns, column)
	return nil
}

// IsAssigned implements store.BoardStore.IsAssigned
func (s *Store) IsAssigned(_ context.Context, subscriberID, templateID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.assignments[assignmentKey{subscriberID, templateID}]
	return ok, nil
}

// CreateAssignedTask implements store.BoardStore.CreateAssignedTask
func (s *Store) CreateAssignedTask(_ context.Context, task *domain.TaskInstance) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[task.BoardID]; !ok {
		return store.ErrBoardNotFound
	}
	key := assignmentKey{task.AssigneeID, task.Assignment.SourceTemplateID}
	if _, taken := s.assignments[key]; taken {
		return store.ErrAlreadyAssigned
	}

	order := 0
	for _, t := range s.tasks {
		if t.BoardID == task.BoardID && t.ColumnID == task.ColumnID && t.Order >= order {
			order = t.Order + 1
		}
	}

	task.Order = order
	s.tasks[task.ID] = copyTask(task)
	s.assignments[key] = task.ID
	return nil
}

// ListCompletedAutoAssigned implements store.BoardStore.ListCompletedAutoAssigned
func (s *Store) ListCompletedAutoAssigned(_ context.Context) ([]*domain.TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.TaskInstance
	for _, t := range s.tasks {
		if t.IsReconcilable() {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Archive implements store.BoardStore.Archive
func (s *Store) Archive(_ context.Context, taskID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if t.IsArchived {
		return false, nil
	}
	t.IsArchived = true
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

// CompleteTask implements store.BoardStore.CompleteTask
func (s *Store) CompleteTask(_ context.Context, taskID uuid.UUID, credit func(*domain.Subscriber) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if t.IsArchived {
		return false, nil
	}
	if err := s.updateStatsLocked(t.AssigneeID, credit); err != nil {
		return false, err
	}
	t.IsArchived = true
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ListTasks implements store.BoardStore.ListTasks
func (s *Store) ListTasks(_ context.Context, boardID uuid.UUID) ([]*domain.TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.TaskInstance
	for _, t := range s.tasks {
		if t.BoardID == boardID && !t.IsArchived {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ColumnID != out[j].ColumnID {
			return out[i].ColumnID < out[j].ColumnID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// SetTaskStatus moves a task through the board workflow, standing in for
// the board editing flows that live outside this service.
func (s *Store) SetTaskStatus(taskID uuid.UUID, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AssignmentCount returns how many (subscriber, template) assignments exist
// for the subscriber, archived ones included.
func (s *Store) AssignmentCount(subscriberID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.assignments {
		if k.subscriber == subscriberID {
			n++
		}
	}
	return n
}

func copySubscriber(s *domain.Subscriber) *domain.Subscriber {
	cp := *s
	cp.Subscription.StartedAt = copyTime(s.Subscription.StartedAt)
	cp.Subscription.EndsAt = copyTime(s.Subscription.EndsAt)
	cp.Profession.SelectedAt = copyTime(s.Profession.SelectedAt)
	if s.Profession.ProfessionID != nil {
		id := *s.Profession.ProfessionID
		cp.Profession.ProfessionID = &id
	}
	cp.Settings.CategoryFilters = slices.Clone(s.Settings.CategoryFilters)
	cp.Settings.LastAssignmentAt = copyTime(s.Settings.LastAssignmentAt)
	cp.Settings.LastCompletionAt = copyTime(s.Settings.LastCompletionAt)
	return &cp
}

func copyTemplate(t *domain.TaskTemplate) *domain.TaskTemplate {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	return &cp
}

func copyBoard(b *domain.Board) *domain.Board {
	cp := *b
	cp.Columns = slices.Clone(b.Columns)
	return &cp
}

func copyTask(t *domain.TaskInstance) *domain.TaskInstance {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	cp.DueDate = copyTime(t.DueDate)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
