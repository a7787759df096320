package assignment

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// Picker chooses the next templates for a subscriber.
type Picker struct {
	catalog store.CatalogStore
	logger  *slog.Logger
}

// NewPicker creates a Picker.
func NewPicker(catalog store.CatalogStore, logger *slog.Logger) *Picker {
	return &Picker{
		catalog: catalog,
		logger:  logger.With("component", "picker"),
	}
}

// PickTasks returns up to DailyTaskLimit templates of the subscriber's
// profession that match their filters and were never assigned to them,
// lowest level first. It returns nothing when the subscriber has no
// profession or a non-positive limit.
func (p *Picker) PickTasks(ctx context.Context, sub *domain.Subscriber) ([]*domain.TaskTemplate, error) {
	limit := sub.Settings.DailyTaskLimit
	if sub.Profession.ProfessionID == nil || limit <= 0 {
		return nil, nil
	}

	q := store.TemplateQuery{
		ProfessionID: *sub.Profession.ProfessionID,
		SubscriberID: sub.ID,
		Limit:        limit,
	}
	if sub.Settings.DifficultyFilter != domain.DifficultyAll {
		q.Difficulty = sub.Settings.DifficultyFilter
	}
	if len(sub.Settings.CategoryFilters) > 0 {
		q.Categories = sub.Settings.CategoryFilters
	}

	templates, err := p.catalog.FindAvailableTemplates(ctx, q)
	if err != nil {
		return nil, NewServiceError("pick_tasks", "failed to query templates", err)
	}

	switch {
	case len(templates) == 0:
		p.logger.Info("no templates left for subscriber",
			"subscriber_id", sub.ID,
			"profession", sub.Profession.Slug)
	case len(templates) < limit:
		p.logger.Info("partial batch",
			"subscriber_id", sub.ID,
			"picked", len(templates),
			"limit", limit)
	}
	return templates, nil
}
