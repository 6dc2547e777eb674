// Package uuid wraps github.com/google/uuid so callers get plain strings.
package uuid

import "github.com/google/uuid"

// New returns a time-ordered (version 7) UUID string, so record ids sort
// roughly by creation time. It falls back to a random UUID if the clock
// source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
