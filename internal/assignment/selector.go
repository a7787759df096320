package assignment

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// Selector finds subscribers due for a daily batch. It never writes.
type Selector struct {
	subscribers store.SubscriberStore
	cal         domain.Calendar
	logger      *slog.Logger
}

// NewSelector creates a Selector.
func NewSelector(subscribers store.SubscriberStore, cal domain.Calendar, logger *slog.Logger) *Selector {
	return &Selector{
		subscribers: subscribers,
		cal:         cal,
		logger:      logger.With("component", "selector"),
	}
}

// SelectDueSubscribers returns the task-eligible subscribers that have not
// received a batch on now's calendar day.
func (s *Selector) SelectDueSubscribers(ctx context.Context, now time.Time) ([]*domain.Subscriber, error) {
	eligible, err := s.subscribers.ListTaskEligible(ctx)
	if err != nil {
		return nil, NewServiceError("select_subscribers", "failed to list eligible subscribers", err)
	}

	due := make([]*domain.Subscriber, 0, len(eligible))
	for _, sub := range eligible {
		if sub.ShouldReceiveBatch(s.cal, now) {
			due = append(due, sub)
		}
	}

	s.logger.Debug("selected subscribers",
		"eligible", len(eligible),
		"due", len(due))
	return due, nil
}
