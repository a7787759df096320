package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BoardKindProfessionTasks marks the board that receives auto-assigned tasks.
const BoardKindProfessionTasks = "profession_tasks"

// Column IDs of the fixed profession board layout.
const (
	ColumnTodo       = "todo"
	ColumnInProgress = "in_progress"
	ColumnReview     = "review"
	ColumnCompleted  = "completed"
)

// Common validation errors for Board
var (
	ErrEmptyBoardOwner = errors.New("board owner cannot be empty")
	ErrEmptyBoardName  = errors.New("board name cannot be empty")
)

// Column is a board column.
type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Color string `json:"color"`
}

// Board is a subscriber's board. Exactly one board of kind
// BoardKindProfessionTasks exists per (owner, profession).
type Board struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	ProfessionID   uuid.UUID `json:"profession_id"`
	ProfessionSlug string    `json:"profession_slug"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Kind           string    `json:"kind"`
	Columns        []Column  `json:"columns"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultColumns returns the fixed column set of a profession board.
func DefaultColumns() []Column {
	return []Column{
		TodoColumn(),
		{ID: ColumnInProgress, Name: "In progress", Order: 1, Color: "#f39c12"},
		{ID: ColumnReview, Name: "Review", Order: 2, Color: "#9b59b6"},
		{ID: ColumnCompleted, Name: "Done", Order: 3, Color: "#27ae60"},
	}
}

// TodoColumn is the column auto-assigned tasks are appended to.
func TodoColumn() Column {
	return Column{ID: ColumnTodo, Name: "To do", Order: 0, Color: "#3498db"}
}

// NewProfessionBoard builds the dedicated board for a subscriber's
// profession with the default column layout.
func NewProfessionBoard(ownerID uuid.UUID, profession *Profession, now time.Time) *Board {
	return &Board{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		ProfessionID:   profession.ID,
		ProfessionSlug: profession.Slug,
		Name:           "Tasks: " + profession.Name,
		Description:    "Automatically assigned tasks for " + profession.Name,
		Kind:           BoardKindProfessionTasks,
		Columns:        DefaultColumns(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks if the Board has valid data.
func (b *Board) Validate() error {
	if b.ID == uuid.Nil {
		return ErrInvalidID
	}
	if b.OwnerID == uuid.Nil {
		return ErrEmptyBoardOwner
	}
	if b.Name == "" {
		return ErrEmptyBoardName
	}
	return nil
}

// Column looks up a column by ID.
func (b *Board) Column(id string) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}
