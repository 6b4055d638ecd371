package domain

import "errors"

var (
	// ErrNotFound is returned by stores when a project or member does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus indicates a status string outside the four board columns.
	ErrInvalidStatus = errors.New("invalid task status")
	// ErrMissingField is returned when a required project or member field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrConflict is returned when a create collides with an existing record or an
	// optimistic update lost against a concurrent writer.
	ErrConflict = errors.New("conflict")
)
