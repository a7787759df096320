package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Difficulty is the difficulty grade of a task template.
type Difficulty string

// Difficulty grades. DifficultyAll is only meaningful as a subscriber filter.
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
	DifficultyAll          Difficulty = "all"
)

// Priority is the priority of a task instance on a board.
type Priority string

// Task priorities
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Common validation errors for the catalog
var (
	ErrInvalidDifficulty   = errors.New("invalid difficulty")
	ErrEmptyTemplateID     = errors.New("template ID cannot be empty")
	ErrEmptyTemplateTitle  = errors.New("template title cannot be empty")
	ErrInvalidTemplateLvl  = errors.New("template level must be between 1 and 10")
	ErrNegativeDeadline    = errors.New("template deadline cannot be negative")
	ErrEmptyProfessionSlug = errors.New("profession slug cannot be empty")
)

// IsValid reports whether d is a concrete difficulty grade.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	default:
		return false
	}
}

// IsValidFilter reports whether d may be used as a subscriber filter.
func (d Difficulty) IsValidFilter() bool {
	return d == DifficultyAll || d.IsValid()
}

// PriorityForDifficulty maps a template difficulty to the priority of the
// task created from it. Unknown difficulties map to medium.
func PriorityForDifficulty(d Difficulty) Priority {
	switch d {
	case DifficultyBeginner:
		return PriorityLow
	case DifficultyIntermediate:
		return PriorityMedium
	case DifficultyAdvanced:
		return PriorityHigh
	case DifficultyExpert:
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}

// Profession is a curated learning track in the catalog.
type Profession struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	IsActive bool      `json:"is_active"`
}

// Validate checks if the Profession has valid data.
func (p *Profession) Validate() error {
	if p.ID == uuid.Nil {
		return ErrInvalidID
	}
	if p.Slug == "" {
		return ErrEmptyProfessionSlug
	}
	return nil
}

// TaskTemplate is a profession-specific task definition. Templates are
// read-only to the assignment service.
type TaskTemplate struct {
	ID             uuid.UUID  `json:"id"`
	ProfessionID   uuid.UUID  `json:"profession_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Difficulty     Difficulty `json:"difficulty"`
	Level          int        `json:"level"`
	EstimatedHours float64    `json:"estimated_hours"`
	DeadlineDays   int        `json:"deadline_days"`
	Tags           []string   `json:"tags"`
	Order          int        `json:"order"`
	IsActive       bool       `json:"is_active"`
	IsPublic       bool       `json:"is_public"`
}

// Validate checks if the TaskTemplate has valid data.
func (t *TaskTemplate) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTemplateID
	}
	if t.ProfessionID == uuid.Nil {
		return ErrEmptyProfession
	}
	if t.Title == "" {
		return ErrEmptyTemplateTitle
	}
	if !t.Difficulty.IsValid() {
		return ErrInvalidDifficulty
	}
	if t.Level < 1 || t.Level > 10 {
		return ErrInvalidTemplateLvl
	}
	if t.DeadlineDays < 0 {
		return ErrNegativeDeadline
	}
	return nil
}
