package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/metrics"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
	"golang.org/x/sync/errgroup"
)

// Stores bundles the three stores the service works over.
type Stores struct {
	Subscribers store.SubscriberStore
	Catalog     store.CatalogStore
	Boards      store.BoardStore
}

func (s Stores) validate() error {
	switch {
	case s.Subscribers == nil:
		return errors.New("subscriber store cannot be nil")
	case s.Catalog == nil:
		return errors.New("catalog store cannot be nil")
	case s.Boards == nil:
		return errors.New("board store cannot be nil")
	}
	return nil
}

// PassResult summarizes one assignment pass.
type PassResult struct {
	Considered    int `json:"considered"`
	Served        int `json:"served"`
	AssignedTasks int `json:"assignedTasks"`
	Failed        int `json:"failed"`
}

// Stats summarizes the progress of active paid subscribers.
type Stats struct {
	Tiers                       []store.TierStats `json:"tiers"`
	TotalSubscribers            int               `json:"totalSubscribers"`
	UsersWithSelectedProfession int               `json:"usersWithSelectedProfession"`
}

// Paging defaults for ListPaid.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SubscriberPage is one page of active paid subscribers.
type SubscriberPage struct {
	Subscribers []*domain.Subscriber
	Page        int
	Limit       int
	Total       int
	Pages       int
}

// Service runs assignment passes.
type Service struct {
	subscribers  store.SubscriberStore
	selector     *Selector
	picker       *Picker
	materializer *Materializer
	cal          domain.Calendar
	opts         options
	logger       *slog.Logger
}

// NewService creates a Service. It returns an error if any store is nil.
func NewService(stores Stores, cal domain.Calendar, logger *slog.Logger, opts ...Option) (*Service, error) {
	if err := stores.validate(); err != nil {
		return nil, &ServiceError{Operation: "create_service", Message: "invalid dependencies", Err: err}
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := buildOptions(opts)
	return &Service{
		subscribers:  stores.Subscribers,
		selector:     NewSelector(stores.Subscribers, cal, logger),
		picker:       NewPicker(stores.Catalog, logger),
		materializer: NewMaterializer(stores.Catalog, stores.Boards, o.metrics, logger),
		cal:          cal,
		opts:         o,
		logger:       logger.With("component", "assignment_service"),
	}, nil
}

// AssignAll serves every subscriber due for today's batch. Failures for one
// subscriber are counted and logged without aborting the pass; only a
// failure to select subscribers, or cancellation, is returned.
func (s *Service) AssignAll(ctx context.Context) (PassResult, error) {
	now := s.opts.now()
	due, err := s.selector.SelectDueSubscribers(ctx, now)
	if err != nil {
		return PassResult{}, err
	}

	res := PassResult{Considered: len(due)}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.workers)

	for _, sub := range due {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := s.serveSafely(ctx, sub)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				s.opts.metrics.Failure(stageServe)
				s.logger.Error("failed to serve subscriber",
					"subscriber_id", sub.ID,
					"error", err)
			case n > 0:
				res.Served++
				res.AssignedTasks += n
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("assignment pass finished",
		"considered", res.Considered,
		"served", res.Served,
		"assigned_tasks", res.AssignedTasks,
		"failed", res.Failed)

	if err := ctx.Err(); err != nil {
		return res, NewServiceError("assign_all", "pass interrupted", err)
	}
	return res, nil
}

func (s *Service) serveSafely(ctx context.Context, sub *domain.Subscriber) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while serving subscriber: %v", r)
		}
	}()
	return s.serve(ctx, sub)
}

// serve hands one subscriber today's batch. The day is claimed before any
// task is created so that concurrent passes cannot both hand out a batch,
// and released again if nothing was created.
func (s *Service) serve(ctx context.Context, sub *domain.Subscriber) (int, error) {
	log := s.logger.With("subscriber_id", sub.ID)

	unlock, ok := s.lock(ctx, sub.ID, log)
	if !ok {
		log.Debug("subscriber is being served elsewhere")
		return 0, nil
	}
	defer unlock()

	templates, err := s.picker.PickTasks(ctx, sub)
	if err != nil {
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	now := s.opts.now()
	previous := sub.Settings.LastAssignmentAt
	won, err := s.subscribers.ClaimDailyAssignment(ctx, sub.ID, s.cal.DayStart(now), now)
	if err != nil {
		return 0, NewServiceError("claim_day", "failed to claim daily assignment", err)
	}
	if !won {
		log.Warn("daily batch already claimed, discarding picked templates",
			"picked", len(templates))
		s.opts.metrics.Anomaly(metrics.AnomalyLostClaim)
		return 0, nil
	}

	res, err := s.materializer.Materialize(ctx, sub, templates, now)
	if err != nil || len(res.Created) == 0 {
		// the claim must be released even when ctx ended mid-batch
		if rerr := s.subscribers.SetLastAssignment(context.WithoutCancel(ctx), sub.ID, previous); rerr != nil {
			log.Error("failed to release daily claim", "error", rerr)
		}
		if err != nil {
			return 0, err
		}
		if res.Failed > 0 {
			return 0, NewServiceError("serve", fmt.Sprintf("%d task creations failed", res.Failed), ErrNothingCreated)
		}
		return 0, nil
	}

	s.recordBatch(ctx, sub.ID, res, false)
	return len(res.Created), nil
}

// AssignToSubscriber hands an eligible subscriber a batch immediately,
// ignoring whether they already received one today. Templates already
// assigned to them are still excluded.
func (s *Service) AssignToSubscriber(ctx context.Context, id uuid.UUID) (int, error) {
	const op = "assign_to_subscriber"
	log := s.logger.With("subscriber_id", id)

	sub, err := s.subscribers.GetByID(ctx, id)
	if err != nil {
		return 0, NewServiceError(op, "failed to load subscriber", err)
	}
	if !sub.IsTaskEligible() {
		return 0, ErrSubscriberNotEligible
	}

	unlock, ok := s.lock(ctx, sub.ID, log)
	if !ok {
		return 0, ErrAssignmentInProgress
	}
	defer unlock()

	templates, err := s.picker.PickTasks(ctx, sub)
	if err != nil {
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	now := s.opts.now()
	res, err := s.materializer.Materialize(ctx, sub, templates, now)
	if err != nil {
		return 0, err
	}
	if len(res.Created) == 0 {
		if res.Failed > 0 {
			return 0, NewServiceError(op, fmt.Sprintf("%d task creations failed", res.Failed), ErrNothingCreated)
		}
		return 0, nil
	}

	if err := s.subscribers.SetLastAssignment(context.WithoutCancel(ctx), sub.ID, &now); err != nil {
		log.Error("failed to record assignment time", "error", err)
	}
	s.recordBatch(ctx, sub.ID, res, true)
	return len(res.Created), nil
}

// Stats returns per-tier progress of active paid subscribers.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	tiers, err := s.subscribers.TierStats(ctx)
	if err != nil {
		return Stats{}, NewServiceError("stats", "failed to load tier stats", err)
	}
	if tiers == nil {
		tiers = []store.TierStats{}
	}

	withProfession, err := s.subscribers.CountWithActiveProfession(ctx)
	if err != nil {
		return Stats{}, NewServiceError("stats", "failed to count subscribers with a profession", err)
	}

	stats := Stats{Tiers: tiers, UsersWithSelectedProfession: withProfession}
	for _, t := range tiers {
		stats.TotalSubscribers += t.Subscribers
	}
	return stats, nil
}

// ListPaid returns one page of active paid subscribers, newest subscription
// first. A page below 1 is treated as 1; the limit defaults to
// DefaultPageLimit and is capped at MaxPageLimit.
func (s *Service) ListPaid(ctx context.Context, page, limit int) (SubscriberPage, error) {
	page = max(page, 1)
	switch {
	case limit < 1:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}

	subs, total, err := s.subscribers.ListPaidSubscribers(ctx, page, limit)
	if err != nil {
		return SubscriberPage{}, NewServiceError("list_paid", "failed to list paid subscribers", err)
	}
	return SubscriberPage{
		Subscribers: subs,
		Page:        page,
		Limit:       limit,
		Total:       total,
		Pages:       (total + limit - 1) / limit,
	}, nil
}

// lock takes the subscriber lock. If the lock backend fails the subscriber
// is served anyway; the daily claim still prevents duplicate batches.
func (s *Service) lock(ctx context.Context, id uuid.UUID, log *slog.Logger) (func(), bool) {
	unlock, ok, err := s.opts.locker.TryLock(ctx, id.String())
	if err != nil {
		log.Warn("subscriber lock unavailable, continuing without it", "error", err)
		return func() {}, true
	}
	return unlock, ok
}

func (s *Service) recordBatch(ctx context.Context, subscriberID uuid.UUID, res MaterializeResult, manual bool) {
	s.opts.metrics.TasksAssigned(len(res.Created))
	s.opts.metrics.SubscriberServed()

	event, err := events.NewEvent(events.TypeTasksAssigned, subscriberID, events.TasksAssignedPayload{
		BoardID: res.BoardID,
		TaskIDs: res.Created,
		Titles:  res.Titles,
		Manual:  manual,
	})
	if err == nil {
		err = s.opts.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		s.logger.Warn("failed to emit assignment event",
			"subscriber_id", subscriberID,
			"error", err)
	}
}

