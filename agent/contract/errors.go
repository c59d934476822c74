package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrStore           = errors.New("store failure")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrSchemaViolation = errors.New("result violates output contract")
)

// FieldError describes one failed structural check on an input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every failing field of a rejected input.
// errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
	KindNotFound    ErrorKind = "not_found"
	KindForbidden   ErrorKind = "forbidden"
	KindUnknownTool ErrorKind = "unknown_tool"
	KindStore       ErrorKind = "store"
	KindInternal    ErrorKind = "internal"
)

// KindOf classifies err into the error taxonomy. Unrecognised errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}

// PublicMessage renders err for a caller outside the process.
// Store and internal failures never expose their cause.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindStore:
		return "operation failed: the data store could not complete the request"
	case KindInternal:
		return "internal error"
	default:
		return err.Error()
	}
}
