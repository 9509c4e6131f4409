// server/internal/dispatch/errors.go
package dispatch

import "errors"

// Sentinel errors returned by the dispatcher. Handlers map them to HTTP
// status codes; callers test with errors.Is.
var (
	// ErrNotFound: the referenced vehicle or request ID is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation: a required field is missing or malformed on create.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: the operation lost a race, e.g. the vehicle was no
	// longer dispatched at confirmation time, or a confirmation arrived
	// for a request with no assignment in flight.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition: the requested status change is not allowed
	// by the entity's state machine. Nothing is persisted.
	ErrInvalidTransition = errors.New("invalid status transition")
)
