package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrCycle          = errors.New("task cannot be moved under itself")
	ErrInvalidRequest = errors.New("invalid move")
)

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}
