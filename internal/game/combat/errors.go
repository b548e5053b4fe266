package combat

import "fmt"

// NotFoundError reports that a referenced resource does not exist. The HTTP
// layer maps it to 404.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// NewNotFoundError constructs a NotFoundError for the given resource and id.
func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports malformed input. The HTTP layer maps it to 422.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError constructs a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CombatError reports an illegal-but-expected domain condition: not your
// turn, target not alive, no spell slots, out of range. Callers are expected
// to recover and retry with a different action. The HTTP layer maps it to 400.
type CombatError struct {
	Message string
}

func (e *CombatError) Error() string { return e.Message }

// NewCombatError constructs a CombatError with a formatted message.
func NewCombatError(format string, args ...any) *CombatError {
	return &CombatError{Message: fmt.Sprintf(format, args...)}
}
