// README: Error taxonomy shared by stores, services and the HTTP layer.
package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type NotFoundError struct {
	Entity string
	ID     ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity string, id ID) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type ConflictError struct {
	Entity string
	Field  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with this %s already exists", e.Entity, e.Field)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(entity, field string) error {
	return &ConflictError{Entity: entity, Field: field}
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError is returned whenever an event is not legal for the
// current status. From and Event are kept as plain strings so this package
// does not depend on any module's enums.
type InvalidTransitionError struct {
	From  string
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s does not accept %s", e.From, e.Event)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
