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

const subscriberColumns = `
	id, username, email,
	subscription_tier, subscription_status, subscription_started_at, subscription_ends_at,
	profession_id, profession_slug, profession_active, profession_selected_at,
	daily_task_limit, difficulty_filter, category_filters,
	last_assignment_at, last_completion_at, completed_task_count, streak_days,
	created_at, updated_at`

const activePaidFilter = `subscription_tier <> 'free' AND subscription_status = 'active'`

// PostgresSubscriberStore implements store.SubscriberStore on PostgreSQL.
type PostgresSubscriberStore struct {
	db *sql.DB
}

// NewPostgresSubscriberStore creates a subscriber store on an open database handle.
func NewPostgresSubscriberStore(db *sql.DB) *PostgresSubscriberStore {
	return &PostgresSubscriberStore{db: db}
}

var _ store.SubscriberStore = (*PostgresSubscriberStore)(nil)

// Create implements store.SubscriberStore.Create
func (s *PostgresSubscriberStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	categories, err := json.Marshal(nonNilStrings(sub.Settings.CategoryFilters))
	if err != nil {
		return fmt.Errorf("failed to encode category filters: %w", err)
	}

	var professionID uuid.NullUUID
	if sub.Profession.ProfessionID != nil {
		professionID = uuid.NullUUID{UUID: *sub.Profession.ProfessionID, Valid: true}
	}

	query := `INSERT INTO subscribers (` + subscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = s.db.ExecContext(ctx, query,
		sub.ID, sub.Username, sub.Email,
		sub.Subscription.Tier, sub.Subscription.Status,
		nullTime(sub.Subscription.StartedAt), nullTime(sub.Subscription.EndsAt),
		professionID, sub.Profession.Slug, sub.Profession.IsActive, nullTime(sub.Profession.SelectedAt),
		sub.Settings.DailyTaskLimit, sub.Settings.DifficultyFilter, string(categories),
		nullTime(sub.Settings.LastAssignmentAt), nullTime(sub.Settings.LastCompletionAt),
		sub.Settings.CompletedTaskCount, sub.Settings.StreakDays,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to create subscriber",
			slog.String("subscriber_id", sub.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.SubscriberStore.GetByID
func (s *PostgresSubscriberStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	return getSubscriber(ctx, s.db, id, false)
}

// ListTaskEligible implements store.SubscriberStore.ListTaskEligible
func (s *PostgresSubscriberStore) ListTaskEligible(ctx context.Context) ([]*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE subscription_status = 'active'
		  AND subscription_tier <> 'free'
		  AND profession_active
		  AND profession_id IS NOT NULL
		  AND daily_task_limit > 0
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return subs, nil
}

// ClaimDailyAssignment implements store.SubscriberStore.ClaimDailyAssignment.
// The conditional UPDATE is atomic per row, so only one concurrent claim for
// a day can match.
func (s *PostgresSubscriberStore) ClaimDailyAssignment(
	ctx context.Context,
	id uuid.UUID,
	dayStart, now time.Time,
) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscribers
		SET last_assignment_at = $3, updated_at = $3
		WHERE id = $1 AND (last_assignment_at IS NULL OR last_assignment_at < $2)`,
		id, dayStart, now,
	)
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SetLastAssignment implements store.SubscriberStore.SetLastAssignment
func (s *PostgresSubscriberStore) SetLastAssignment(ctx context.Context, id uuid.UUID, at *time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscribers SET last_assignment_at = $2, updated_at = NOW() WHERE id = $1`,
		id, nullTime(at),
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSubscriberNotFound)
}

// UpdateStats implements store.SubscriberStore.UpdateStats using
// SELECT ... FOR UPDATE inside a transaction.
func (s *PostgresSubscriberStore) UpdateStats(
	ctx context.Context,
	id uuid.UUID,
	fn func(*domain.Subscriber) error,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return updateSubscriberStats(ctx, tx, id, fn)
	})
}

// updateSubscriberStats locks the subscriber row, applies fn and saves the
// completion counters. It must run inside a transaction.
func updateSubscriberStats(ctx context.Context, tx *sql.Tx, id uuid.UUID, fn func(*domain.Subscriber) error) error {
	sub, err := getSubscriber(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if err := fn(sub); err != nil {
		return err
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE subscribers
		SET completed_task_count = $2,
		    streak_days = $3,
		    last_completion_at = $4,
		    updated_at = $5
		WHERE id = $1`,
		sub.ID,
		sub.Settings.CompletedTaskCount,
		sub.Settings.StreakDays,
		nullTime(sub.Settings.LastCompletionAt),
		sub.UpdatedAt,
	)
	return MapError(err)
}

// TierStats implements store.SubscriberStore.TierStats
func (s *PostgresSubscriberStore) TierStats(ctx context.Context) ([]store.TierStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscription_tier,
		       COUNT(*),
		       COALESCE(AVG(completed_task_count), 0)::float8,
		       COALESCE(AVG(streak_days), 0)::float8
		FROM subscribers
		WHERE `+activePaidFilter+`
		GROUP BY subscription_tier
		ORDER BY subscription_tier`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var stats []store.TierStats
	for rows.Next() {
		var ts store.TierStats
		if err := rows.Scan(&ts.Tier, &ts.Subscribers, &ts.AverageCompleted, &ts.AverageStreak); err != nil {
			return nil, MapError(err)
		}
		stats = append(stats, ts)
	}
	return stats, MapError(rows.Err())
}

// CountWithActiveProfession implements store.SubscriberStore.CountWithActiveProfession
func (s *PostgresSubscriberStore) CountWithActiveProfession(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE `+activePaidFilter+` AND profession_active`,
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// ListPaidSubscribers implements store.SubscriberStore.ListPaidSubscribers
func (s *PostgresSubscriberStore) ListPaidSubscribers(
	ctx context.Context,
	page, limit int,
) ([]*domain.Subscriber, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE `+activePaidFilter,
	).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}
	if page < 1 || limit < 1 || (page-1)*limit >= total {
		return []*domain.Subscriber{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers
		WHERE `+activePaidFilter+`
		ORDER BY subscription_started_at DESC NULLS LAST, id
		LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*domain.Subscriber, 0, limit)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}
	return subs, total, nil
}

func getSubscriber(ctx context.Context, db store.DBTX, id uuid.UUID, forUpdate bool) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	sub, err := scanSubscriber(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrSubscriberNotFound
	}
	return sub, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var (
		sub                                domain.Subscriber
		startedAt, endsAt, selectedAt      sql.NullTime
		lastAssignmentAt, lastCompletionAt sql.NullTime
		professionID                       uuid.NullUUID
		categories                         []byte
	)

	err := row.Scan(
		&sub.ID, &sub.Username, &sub.Email,
		&sub.Subscription.Tier, &sub.Subscription.Status, &startedAt, &endsAt,
		&professionID, &sub.Profession.Slug, &sub.Profession.IsActive, &selectedAt,
		&sub.Settings.DailyTaskLimit, &sub.Settings.DifficultyFilter, &categories,
		&lastAssignmentAt, &lastCompletionAt, &sub.Settings.CompletedTaskCount, &sub.Settings.StreakDays,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, MapError(err)
	}

	if professionID.Valid {
		id := professionID.UUID
		sub.Profession.ProfessionID = &id
	}
	sub.Subscription.StartedAt = timePtr(startedAt)
	sub.Subscription.EndsAt = timePtr(endsAt)
	sub.Profession.SelectedAt = timePtr(selectedAt)
	sub.Settings.LastAssignmentAt = timePtr(lastAssignmentAt)
	sub.Settings.LastCompletionAt = timePtr(lastCompletionAt)

	if err := json.Unmarshal(categories, &sub.Settings.CategoryFilters); err != nil {
		return nil, fmt.Errorf("failed to decode category filters: %w", err)
	}
	return &sub, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
