package admin

import (
	"errors"
	"fmt"
)

var (
	ErrBranchConflict = errors.New("branch already exists")
	ErrBranchNotFound = errors.New("branch not found")
	ErrInvalidInput   = errors.New("invalid input")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
