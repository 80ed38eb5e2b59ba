package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// AdapterError records a failed call into an external collaborator.
type AdapterError struct {
	Adapter string
	Op      string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}
