package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrLockTimeout       = errors.New("lock wait timeout, retry")
	ErrSequenceExhausted = errors.New("sequence exhausted for period")
	ErrAlreadyScheduled  = errors.New("schedule already generated for loan")
)

// ValidationError rejects bad input before any mutation happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StateConflictError signals an operation that is invalid for the entity's
// current state, e.g. reversing a payment that is not RECORDED. Current
// carries the state so the caller can decide what to do.
type StateConflictError struct {
	Entity  string
	Current string
	Message string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s in state %s: %s", e.Entity, e.Current, e.Message)
}

// IsRetryable reports whether the caller may retry the operation with
// backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
