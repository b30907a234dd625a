package core

import "github.com/pkg/errors"

var (
	ErrUnauthorized = errors.New("user not authenticated")
	ErrForbidden    = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
// Label is set when the field is reported by its display label rather than its key.
type FieldError struct {
	Field string
	Label string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// Labels returns the labels of the labelled field errors, in order. Labels may repeat.
func (err ValidationError) Labels() []string {
	var labels []string
	for _, fld := range err.Fields {
		if fld.Label != "" {
			labels = append(labels, fld.Label)
		}
	}
	return labels
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// NotFoundError is returned when an entity does not exist or is not visible to the caller.
type NotFoundError struct {
	entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{entity: entity}
}

func (err NotFoundError) Error() string {
	return err.entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConflictError is returned when a write would break a uniqueness rule.
type ConflictError struct {
	message string
}

func NewConflictError(msg string) error {
	return &ConflictError{message: msg}
}

func (err ConflictError) Error() string {
	return err.message
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
