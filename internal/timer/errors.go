package timer

import "errors"

// Error kinds surfaced by the state machine. Handlers translate these to
// HTTP status codes; everything else is treated as a store failure.
var (
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)
