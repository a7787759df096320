package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
)

// TemplateQuery selects assignable templates for one subscriber.
type TemplateQuery struct {
	ProfessionID uuid.UUID
	// SubscriberID excludes every template already assigned to this
	// subscriber, archived assignments included.
	SubscriberID uuid.UUID
	// Difficulty restricts templates to one grade unless DifficultyAll or empty.
	Difficulty domain.Difficulty
	// Categories restricts templates to these categories when non-empty.
	Categories []string
	Limit      int
}

// CatalogStore defines the interface for the read side of the profession catalog.
type CatalogStore interface {
	// GetProfession retrieves a profession by ID.
	// Returns ErrProfessionNotFound if it does not exist.
	GetProfession(ctx context.Context, id uuid.UUID) (*domain.Profession, error)

	// FindAvailableTemplates returns active, public templates matching the
	// query, ordered by level then curated order, at most Limit of them.
	FindAvailableTemplates(ctx context.Context, q TemplateQuery) ([]*domain.TaskTemplate, error)

	// CreateProfession saves a profession. Used for seeding.
	CreateProfession(ctx context.Context, profession *domain.Profession) error

	// CreateTemplate saves a template. Used for seeding.
	CreateTemplate(ctx context.Context, template *domain.TaskTemplate) error
}
