package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier is the paid plan a subscriber is on.
type SubscriptionTier string

// Subscription tiers
const (
	TierFree       SubscriptionTier = "free"
	TierPremium    SubscriptionTier = "premium"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

// Subscription statuses
const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// Common validation errors for Subscriber
var (
	ErrEmptySubscriberID = errors.New("subscriber ID cannot be empty")
	ErrInvalidTier       = errors.New("invalid subscription tier")
	ErrInvalidStatus     = errors.New("invalid subscription status")
	ErrNegativeCounter   = errors.New("task counters cannot be negative")
	ErrEmptyProfession   = errors.New("profession ID cannot be empty")
)

// Subscription holds the plan and billing state of a subscriber.
type Subscription struct {
	Tier      SubscriptionTier   `json:"tier"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndsAt    *time.Time         `json:"ends_at,omitempty"`
}

// SelectedProfession is the profession a subscriber receives tasks for.
type SelectedProfession struct {
	ProfessionID *uuid.UUID `json:"profession_id,omitempty"`
	Slug         string     `json:"slug"`
	IsActive     bool       `json:"is_active"`
	SelectedAt   *time.Time `json:"selected_at,omitempty"`
}

// TaskSettings are the per-subscriber assignment settings and counters.
// LastAssignmentAt, LastCompletionAt, CompletedTaskCount and StreakDays are
// mutated only by the assignment service.
type TaskSettings struct {
	DailyTaskLimit     int        `json:"daily_task_limit"`
	DifficultyFilter   Difficulty `json:"difficulty_filter"`
	CategoryFilters    []string   `json:"category_filters"`
	LastAssignmentAt   *time.Time `json:"last_assignment_at,omitempty"`
	LastCompletionAt   *time.Time `json:"last_completion_at,omitempty"`
	CompletedTaskCount int        `json:"completed_task_count"`
	StreakDays         int        `json:"streak_days"`
}

// Subscriber is the subset of a user account relevant to automatic task
// assignment.
type Subscriber struct {
	ID           uuid.UUID          `json:"id"`
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	Subscription Subscription       `json:"subscription"`
	Profession   SelectedProfession `json:"selected_profession"`
	Settings     TaskSettings       `json:"task_settings"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewSubscriber creates a free, active subscriber with default task settings.
func NewSubscriber(username, email string) *Subscriber {
	now := time.Now().UTC()
	return &Subscriber{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		Subscription: Subscription{
			Tier:   TierFree,
			Status: StatusActive,
		},
		Settings: TaskSettings{
			DifficultyFilter: DifficultyAll,
			CategoryFilters:  []string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the Subscriber has valid data.
func (s *Subscriber) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySubscriberID
	}
	if !isValidTier(s.Subscription.Tier) {
		return ErrInvalidTier
	}
	if !isValidStatus(s.Subscription.Status) {
		return ErrInvalidStatus
	}
	if !s.Settings.DifficultyFilter.IsValidFilter() {
		return ErrInvalidDifficulty
	}
	if s.Settings.DailyTaskLimit < 0 || s.Settings.CompletedTaskCount < 0 || s.Settings.StreakDays < 0 {
		return ErrNegativeCounter
	}
	return nil
}

// IsTaskEligible reports whether the subscriber may receive automatic tasks
// at all: an active paid subscription, an active profession and a positive
// daily limit.
func (s *Subscriber) IsTaskEligible() bool {
	return s.Subscription.Status == StatusActive &&
		s.Subscription.Tier != TierFree &&
		s.Profession.IsActive &&
		s.Profession.ProfessionID != nil &&
		s.Settings.DailyTaskLimit > 0
}

// ShouldReceiveBatch reports whether the subscriber is eligible and has not
// yet been served a batch on now's calendar day.
func (s *Subscriber) ShouldReceiveBatch(cal Calendar, now time.Time) bool {
	if !s.IsTaskEligible() {
		return false
	}
	last := s.Settings.LastAssignmentAt
	return last == nil || !cal.SameDay(*last, now)
}

// RecordCompletion counts one completed auto-assigned task and advances the
// streak: unchanged when the last completion was today, +1 when it was
// yesterday, otherwise reset to 1.
func (s *Subscriber) RecordCompletion(cal Calendar, now time.Time) {
	s.Settings.CompletedTaskCount++

	last := s.Settings.LastCompletionAt
	switch {
	case last != nil && cal.SameDay(*last, now):
		// streak unchanged
	case last != nil && cal.IsYesterday(*last, now):
		s.Settings.StreakDays++
	default:
		s.Settings.StreakDays = 1
	}

	completedAt := now
	s.Settings.LastCompletionAt = &completedAt
	s.UpdatedAt = now
}

// DailyLimitForTier returns the default number of tasks per day for a tier.
func DailyLimitForTier(tier SubscriptionTier) int {
	switch tier {
	case TierPremium:
		return 3
	case TierPro:
		return 5
	case TierEnterprise:
		return 10
	default:
		return 0
	}
}

// ChangeTier moves the subscriber to a new plan and resets the daily limit
// to the tier default.
func (s *Subscriber) ChangeTier(tier SubscriptionTier, now time.Time) error {
	if !isValidTier(tier) {
		return ErrInvalidTier
	}
	s.Subscription.Tier = tier
	s.Subscription.Status = StatusActive
	started := now
	s.Subscription.StartedAt = &started
	s.Settings.DailyTaskLimit = DailyLimitForTier(tier)
	s.UpdatedAt = now
	return nil
}

// SelectProfession activates a profession and starts progress over.
func (s *Subscriber) SelectProfession(professionID uuid.UUID, slug string, now time.Time) error {
	if professionID == uuid.Nil {
		return ErrEmptyProfession
	}
	id := professionID
	selected := now
	s.Profession = SelectedProfession{
		ProfessionID: &id,
		Slug:         slug,
		IsActive:     true,
		SelectedAt:   &selected,
	}
	s.Settings.CompletedTaskCount = 0
	s.Settings.StreakDays = 0
	s.Settings.LastAssignmentAt = nil
	s.Settings.LastCompletionAt = nil
	s.UpdatedAt = now
	return nil
}

func isValidTier(tier SubscriptionTier) bool {
	switch tier {
	case TierFree, TierPremium, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

func isValidStatus(status SubscriptionStatus) bool {
	switch status {
	case StatusActive, StatusInactive, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}
