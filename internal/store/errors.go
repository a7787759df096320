package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity, such as a second assignment of the same template
	// to the same subscriber.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// Entity-specific "not found" errors

	// ErrSubscriberNotFound indicates that the requested subscriber does not exist.
	ErrSubscriberNotFound = fmt.Errorf("%w: subscriber", ErrNotFound)

	// ErrProfessionNotFound indicates that the requested profession does not exist.
	ErrProfessionNotFound = fmt.Errorf("%w: profession", ErrNotFound)

	// ErrBoardNotFound indicates that the subscriber has no board for the profession.
	ErrBoardNotFound = fmt.Errorf("%w: board", ErrNotFound)

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrAlreadyAssigned indicates that the template was already assigned to the subscriber.
	ErrAlreadyAssigned = fmt.Errorf("%w: assignment", ErrDuplicate)

	// ErrBoardExists indicates that the profession board already exists.
	ErrBoardExists = fmt.Errorf("%w: board", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
