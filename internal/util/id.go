// Package util provides id, numbering and clock helpers.
package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new UUIDv7 identifier.
// UUIDv7 provides time-ordered identifiers for better database index locality.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only fails when the random source does.
		return uuid.New().String()
	}
	return id.String()
}

// ParseID validates and parses a UUID string.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return id.String(), nil
}

// IsValidID checks if a string is a valid UUID format.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// DefaultDiscardPrefix prefixes discard numbers when none is configured.
const DefaultDiscardPrefix = "DSP"

// FormatDiscardNumber renders a human-readable discard number.
// Format: {prefix}-{6-digit sequence}, e.g. DSP-000042.
func FormatDiscardNumber(prefix string, seq int) string {
	if prefix == "" {
		prefix = DefaultDiscardPrefix
	}
	return fmt.Sprintf("%s-%06d", strings.ToUpper(prefix), seq)
}

// ParseDiscardNumber extracts the prefix and sequence from a discard number.
func ParseDiscardNumber(s string) (prefix string, seq int, err error) {
	idx := strings.LastIndex(s, "-")
	if idx <= 0 || idx == len(s)-1 {
		return "", 0, fmt.Errorf("invalid discard number %q", s)
	}
	if _, err := fmt.Sscanf(s[idx+1:], "%d", &seq); err != nil {
		return "", 0, fmt.Errorf("invalid discard number %q: %w", s, err)
	}
	if seq < 1 {
		return "", 0, fmt.Errorf("invalid discard number %q: sequence must be positive", s)
	}
	return s[:idx], seq, nil
}
