// Package uuid provides record identifier generation and validation.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4 in canonical lowercase form.
func New() string {
	return uuid.New().String()
}

// Parse parses s as a UUID of any version.
// Foreign references may come from the backend, which is free to use other versions.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	return id, nil
}

// IsValid checks if a string is a valid UUID v4 as produced by New.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// IsReference reports whether s can be used as a reference to another record.
func IsReference(s string) bool {
	_, err := Parse(s)
	return err == nil && len(s) == 36
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
