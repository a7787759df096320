package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// PostgresCatalogStore implements store.CatalogStore on PostgreSQL.
type PostgresCatalogStore struct {
	db store.DBTX
}

// NewPostgresCatalogStore creates a catalog store.
func NewPostgresCatalogStore(db store.DBTX) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

var _ store.CatalogStore = (*PostgresCatalogStore)(nil)

// GetProfession implements store.CatalogStore.GetProfession
func (s *PostgresCatalogStore) GetProfession(ctx context.Context, id uuid.UUID) (*domain.Profession, error) {
	var p domain.Profession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, is_active FROM professions WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProfessionNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &p, nil
}

// FindAvailableTemplates implements store.CatalogStore.FindAvailableTemplates.
// Exclusion is a NOT EXISTS lookup against the task_assignments primary key.
func (s *PostgresCatalogStore) FindAvailableTemplates(
	ctx context.Context,
	q store.TemplateQuery,
) ([]*domain.TaskTemplate, error) {
	query, args := buildTemplateQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*domain.TaskTemplate
	for rows.Next() {
		var (
			t    domain.TaskTemplate
			tags []byte
		)
		if err := rows.Scan(
			&t.ID, &t.ProfessionID, &t.Title, &t.Description, &t.Category, &t.Difficulty,
			&t.Level, &t.EstimatedHours, &t.DeadlineDays, &tags, &t.Order, &t.IsActive, &t.IsPublic,
		); err != nil {
			return nil, MapError(err)
		}
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode template tags: %w", err)
		}
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return templates, nil
}

func buildTemplateQuery(q store.TemplateQuery) (string, []any) {
	var b strings.Builder
	args := []any{q.ProfessionID, q.SubscriberID}

	b.WriteString(`SELECT t.id, t.profession_id, t.title, t.description, t.category, t.difficulty,
		t.level, t.estimated_hours, t.deadline_days, t.tags, t.sort_order, t.is_active, t.is_public
		FROM task_templates t
		WHERE t.profession_id = $1
		  AND t.is_active AND t.is_public
		  AND NOT EXISTS (
		      SELECT 1 FROM task_assignments a
		      WHERE a.subscriber_id = $2 AND a.template_id = t.id
		  )`)

	if q.Difficulty != "" && q.Difficulty != domain.DifficultyAll {
		args = append(args, q.Difficulty)
		fmt.Fprintf(&b, "\n\t\t  AND t.difficulty = $%d", len(args))
	}

	if len(q.Categories) > 0 {
		placeholders := make([]string, len(q.Categories))
		for i, c := range q.Categories {
			args = append(args, c)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		fmt.Fprintf(&b, "\n\t\t  AND t.category IN (%s)", strings.Join(placeholders, ", "))
	}

	b.WriteString("\n\t\tORDER BY t.level ASC, t.sort_order ASC, t.id ASC")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, "\n\t\tLIMIT $%d", len(args))
	}
	return b.String(), args
}

// CreateProfession implements store.CatalogStore.CreateProfession
func (s *PostgresCatalogStore) CreateProfession(ctx context.Context, p *domain.Profession) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO professions (id, name, slug, is_active) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Slug, p.IsActive,
	)
	return MapError(err)
}

// CreateTemplate implements store.CatalogStore.CreateTemplate
func (s *PostgresCatalogStore) CreateTemplate(ctx context.Context, t *domain.TaskTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	tags, err := json.Marshal(nonNilStrings(t.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode template tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_templates (
			id, profession_id, title, description, category, difficulty, level,
			estimated_hours, deadline_days, tags, sort_order, is_active, is_public
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.ProfessionID, t.Title, t.Description, t.Category, t.Difficulty, t.Level,
		t.EstimatedHours, t.DeadlineDays, string(tags), t.Order, t.IsActive, t.IsPublic,
	)
	return MapError(err)
}
