package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeTasksAssigned  = "tasks.assigned"
	TypeTasksCompleted = "tasks.completed"
)

// Event is a notification addressed to one subscriber.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	SubscriberID uuid.UUID       `json:"subscriber_id"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TasksAssignedPayload lists the tasks a subscriber just received.
type TasksAssignedPayload struct {
	BoardID uuid.UUID   `json:"board_id"`
	TaskIDs []uuid.UUID `json:"task_ids"`
	Titles  []string    `json:"titles"`
	Manual  bool        `json:"manual"`
}

// TasksCompletedPayload reports reconciled completions and the resulting
// subscriber counters.
type TasksCompletedPayload struct {
	TaskIDs            []uuid.UUID `json:"task_ids"`
	CompletedTaskCount int         `json:"completed_task_count"`
	StreakDays         int         `json:"streak_days"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with a fresh ID and the payload encoded as JSON.
func NewEvent(eventType string, subscriberID uuid.UUID, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:           uuid.New(),
		Type:         eventType,
		SubscriberID: subscriberID,
		Payload:      raw,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// EventHandler processes emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
