package timer

import "errors"

// ErrValidation matches every creation-input error via errors.Is.
var ErrValidation = errors.New("invalid timer request")

// ValidationError carries a user-facing message describing the rejected field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }
