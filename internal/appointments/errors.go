package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment has the requested id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrConflict is returned when an update carries a stale version.
	ErrConflict = errors.New("appointments: version conflict")
	// ErrInvalidTransition is returned for status changes other than a single forward step.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
	// ErrImmutableField is returned when an update touches a field fixed at creation.
	ErrImmutableField = errors.New("appointments: immutable field changed")
	// ErrInvalidRequest is returned when a create request fails validation.
	ErrInvalidRequest = errors.New("appointments: invalid request")
)
