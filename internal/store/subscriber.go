package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
)

// TierStats aggregates subscriber progress for one subscription tier.
type TierStats struct {
	Tier             domain.SubscriptionTier `json:"tier"`
	Subscribers      int                     `json:"subscribers"`
	AverageCompleted float64                 `json:"averageCompleted"`
	AverageStreak    float64                 `json:"averageStreak"`
}

// SubscriberStore defines the interface for the subscriber registry.
type SubscriberStore interface {
	// Create saves a new subscriber.
	// Returns ErrDuplicate if the ID is already taken.
	Create(ctx context.Context, subscriber *domain.Subscriber) error

	// GetByID retrieves a subscriber by ID.
	// Returns ErrSubscriberNotFound if the subscriber does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error)

	// ListTaskEligible returns every subscriber that is task-eligible:
	// active paid subscription, active profession, positive daily limit.
	// The date guard is not applied.
	ListTaskEligible(ctx context.Context) ([]*domain.Subscriber, error)

	// ClaimDailyAssignment sets the last assignment time to now only if it is
	// unset or earlier than dayStart. It reports whether this call made the
	// change. Of any number of concurrent claims for the same day, at most
	// one returns true.
	ClaimDailyAssignment(ctx context.Context, id uuid.UUID, dayStart, now time.Time) (bool, error)

	// SetLastAssignment overwrites the last assignment time, nil clears it.
	SetLastAssignment(ctx context.Context, id uuid.UUID, at *time.Time) error

	// UpdateStats loads the subscriber under a write lock, applies fn and
	// persists the completion counters (count, streak, last completion).
	// Nothing is written if fn returns an error.
	UpdateStats(ctx context.Context, id uuid.UUID, fn func(*domain.Subscriber) error) error

	// TierStats returns per-tier progress aggregates for active paid
	// subscriptions.
	TierStats(ctx context.Context) ([]TierStats, error)

	// CountWithActiveProfession counts active paid subscribers whose
	// selected profession is active.
	CountWithActiveProfession(ctx context.Context) (int, error)

	// ListPaidSubscribers returns one page of active paid subscribers,
	// newest subscription first, and the total across all pages. Pages
	// start at 1.
	ListPaidSubscribers(ctx context.Context, page, limit int) ([]*domain.Subscriber, int, error)
}
