package engine

import (
	"errors"
	"fmt"
)

var (
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidStep        = errors.New("invalid step")
)

// PreconditionError names the step gate that blocked a transition.
type PreconditionError struct {
	Step      int
	Condition string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("step %d cannot be completed: %s", e.Step, e.Condition)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
