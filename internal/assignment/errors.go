package assignment

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskboard-scheduler/internal/store"
)

// Common service errors. The API layer maps these to status codes.
var (
	// ErrSubscriberNotFound indicates the subscriber does not exist.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrSubscriberNotEligible indicates the subscriber has no active paid
	// subscription, no active profession, or a zero daily limit.
	ErrSubscriberNotEligible = errors.New("subscriber is not eligible for automatic tasks")

	// ErrAssignmentInProgress indicates another worker is serving the
	// subscriber right now.
	ErrAssignmentInProgress = errors.New("assignment already in progress for subscriber")

	// ErrNothingCreated indicates that every task creation in a batch failed.
	ErrNothingCreated = errors.New("no tasks could be created")
)

// ServiceError wraps errors from the assignment service with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "assign_all", "materialize")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assignment %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("assignment %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError. Known sentinels are returned
// directly, and store-level not-found for subscribers is mapped to
// ErrSubscriberNotFound.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrSubscriberNotFound), errors.Is(err, store.ErrSubscriberNotFound):
		return ErrSubscriberNotFound
	case errors.Is(err, ErrSubscriberNotEligible):
		return ErrSubscriberNotEligible
	case errors.Is(err, ErrAssignmentInProgress):
		return ErrAssignmentInProgress
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
