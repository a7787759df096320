package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task instance.
type TaskStatus string

// Task statuses. Transitions after creation belong to the board workflow.
const (
	TaskStatusPlanning   TaskStatus = "planning"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Common validation errors for TaskInstance
var (
	ErrEmptyTaskBoard    = errors.New("task board ID cannot be empty")
	ErrEmptyTaskAssignee = errors.New("task assignee cannot be empty")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
	ErrEmptyTaskSource   = errors.New("auto-assigned task must reference a template")
)

var tagPalette = [...]string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6",
	"#1abc9c", "#34495e", "#e67e22", "#95a5a6", "#f1c40f",
}

// Tag is a colored label on a task.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagColor deterministically maps a tag name onto the fixed palette, so the
// same tag always renders in the same color.
func TagColor(name string) string {
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return tagPalette[sum%len(tagPalette)]
}

// NewTags builds colored tags from tag names.
func NewTags(names []string) []Tag {
	tags := make([]Tag, 0, len(names))
	for _, n := range names {
		tags = append(tags, Tag{Name: n, Color: TagColor(n)})
	}
	return tags
}

// AssignmentMetadata links an auto-assigned task back to its template.
type AssignmentMetadata struct {
	SourceTemplateID uuid.UUID  `json:"source_template_id"`
	ProfessionSlug   string     `json:"profession_slug"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	AutoAssigned     bool       `json:"auto_assigned"`
	AssignedAt       time.Time  `json:"assigned_at"`
}

// TaskInstance is a concrete task on a board.
type TaskInstance struct {
	ID             uuid.UUID          `json:"id"`
	BoardID        uuid.UUID          `json:"board_id"`
	ColumnID       string             `json:"column_id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Status         TaskStatus         `json:"status"`
	Priority       Priority           `json:"priority"`
	AssigneeID     uuid.UUID          `json:"assignee_id"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	EstimatedHours float64            `json:"estimated_hours"`
	Tags           []Tag              `json:"tags"`
	Order          int                `json:"order"`
	IsArchived     bool               `json:"is_archived"`
	Assignment     AssignmentMetadata `json:"assignment"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NewAssignedTask instantiates a template for a subscriber on the given board
// column. Order is left for the store to assign.
func NewAssignedTask(
	tmpl *TaskTemplate,
	subscriberID uuid.UUID,
	board *Board,
	columnID string,
	now time.Time,
) *TaskInstance {
	due := now.AddDate(0, 0, tmpl.DeadlineDays)
	return &TaskInstance{
		ID:             uuid.New(),
		BoardID:        board.ID,
		ColumnID:       columnID,
		Title:          tmpl.Title,
		Description:    tmpl.Description,
		Status:         TaskStatusPlanning,
		Priority:       PriorityForDifficulty(tmpl.Difficulty),
		AssigneeID:     subscriberID,
		DueDate:        &due,
		EstimatedHours: tmpl.EstimatedHours,
		Tags:           NewTags(tmpl.Tags),
		Assignment: AssignmentMetadata{
			SourceTemplateID: tmpl.ID,
			ProfessionSlug:   board.ProfessionSlug,
			Category:         tmpl.Category,
			Difficulty:       tmpl.Difficulty,
			AutoAssigned:     true,
			AssignedAt:       now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the TaskInstance has valid data.
func (t *TaskInstance) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidID
	}
	if t.BoardID == uuid.Nil {
		return ErrEmptyTaskBoard
	}
	if t.AssigneeID == uuid.Nil {
		return ErrEmptyTaskAssignee
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if t.Assignment.AutoAssigned && t.Assignment.SourceTemplateID == uuid.Nil {
		return ErrEmptyTaskSource
	}
	return nil
}

// IsReconcilable reports whether the task is a completed auto-assigned task
// that has not been archived yet.
func (t *TaskInstance) IsReconcilable() bool {
	return t.Status == TaskStatusCompleted && t.Assignment.AutoAssigned && !t.IsArchived
}
