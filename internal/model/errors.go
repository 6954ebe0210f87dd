package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned for lookups of unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrInvariant is returned when an operation would break a domain rule.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotEnrolled is returned when a student is marked for a lecture outside
	// their subjects.
	ErrNotEnrolled = fmt.Errorf("%w: student not enrolled in subject", ErrInvariant)
)

// ValidationError captures field level problems with caller input.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an error holding a single field message.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records a message for field. The first message per field wins.
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	if _, ok := v.Fields[field]; ok {
		return
	}
	v.Fields[field] = msg
}

// HasErrors reports whether any field was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
