package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ForbiddenError is returned when a jurisdiction or role check fails.
type ForbiddenError struct {
	Reason string
}

func NewForbiddenError(format string, args ...interface{}) error {
	return &ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}

func (err ForbiddenError) Error() string {
	if err.Reason == "" {
		return "permission denied"
	}
	return err.Reason
}

// ConflictError is returned on unique constraint violations and lost compare-and-swap races.
type ConflictError struct {
	Reason string
}

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (err ConflictError) Error() string { return err.Reason }

// StateError is returned when an operation is not allowed in the current state of a record.
type StateError struct {
	Reason string
}

func NewStateError(format string, args ...interface{}) error {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

func (err StateError) Error() string { return err.Reason }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsStateError(err error) bool {
	_, ok := errors.Cause(err).(*StateError)
	return ok
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
