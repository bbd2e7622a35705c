package utils

import (
	"strings"
	"unicode/utf8"
)

const MaxNameLength = 80

// NormalizeEmail lower-cases and trims an email so lookups and the unique index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims a display name and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateName checks a display name after normalisation.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if n > MaxNameLength {
		return &ValidationError{Field: "name", Message: "Name must be at most 80 characters"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
