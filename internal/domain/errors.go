package domain

// ValidationError reports a missing or invalid field in a request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation errors surfaced by the HTTP boundary.
var (
	ErrNoText = &ValidationError{Message: "No text provided"}
	ErrNoKey  = &ValidationError{Message: "No key provided"}
)
