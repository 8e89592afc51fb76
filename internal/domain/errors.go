package domain

import (
	"errors"
	"fmt"
)

// ErrNoRecord is returned by stores when a record does not exist.
var ErrNoRecord = errors.New("record not found")

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
)

// ValidationError reports structurally invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (ValidationError) Kind() ErrorKind { return KindValidation }

// ConflictError reports a business-rule collision: duplicate title,
// illegal transition, bad date range, or assignees on a personal task.
type ConflictError struct {
	Message      string
	SimilarTasks []Task
}

func (e ConflictError) Error() string { return e.Message }

func (ConflictError) Kind() ErrorKind { return KindConflict }

// NotFoundError covers both missing tasks and tasks outside the caller's scope.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (NotFoundError) Kind() ErrorKind { return KindNotFound }

// ForbiddenError reports an in-scope task the caller may not access.
type ForbiddenError struct {
	Message string
}

func (e ForbiddenError) Error() string { return e.Message }

func (ForbiddenError) Kind() ErrorKind { return KindForbidden }

func Validation(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

func Conflict(msg string) error {
	return ConflictError{Message: msg}
}

func NotFound(resource, id string) error {
	return NotFoundError{Resource: resource, ID: id}
}

func Forbidden(msg string) error {
	return ForbiddenError{Message: msg}
}

// KindOf returns the kind of a taxonomy error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var k interface {
		error
		Kind() ErrorKind
	}
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return "", false
}

func IsValidation(err error) bool { return hasKind(err, KindValidation) }
func IsConflict(err error) bool   { return hasKind(err, KindConflict) }
func IsNotFound(err error) bool   { return hasKind(err, KindNotFound) }
func IsForbidden(err error) bool  { return hasKind(err, KindForbidden) }

func hasKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
