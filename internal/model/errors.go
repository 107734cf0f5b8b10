package model

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrConfiguration means credentials, spreadsheet id or roster are missing or malformed.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection means the store could not be reached or the tab does not exist.
	ErrConnection = errors.New("store connection error")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when no row carries the requested id.
	ErrNotFound = errors.New("help request not found")
	// ErrRowChanged is returned when the targeted row no longer holds the scanned id.
	ErrRowChanged = errors.New("help request row changed before update")
	// ErrSessionNotFound is returned for unknown or expired UI sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError carries field-level messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
