package domain

import "errors"

var (
	// ErrInvalidID is returned when a required ID is missing or malformed.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTimezone is returned when a calendar cannot load its location.
	ErrInvalidTimezone = errors.New("invalid timezone")
)
