package market

import "errors"

// Sentinel errors for the domain taxonomy. The handler layer maps these to
// HTTP status codes in one place.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInvalidState      = errors.New("invalid_state")
	ErrUnavailable       = errors.New("unavailable")
)

// ValidationError carries the field-level message back to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
