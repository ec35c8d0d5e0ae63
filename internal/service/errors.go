package service

import (
	"errors"
	"fmt"
)

// ErrInternal marks failures caused by corrupt stored data rather than bad input.
var ErrInternal = errors.New("internal error")

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IntegrityError reports a data-integrity defect found while planning an operation.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() []error { return []error{ErrInternal, e.Err} }
