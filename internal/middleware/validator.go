package middleware

import (
	"fmt"
	"path"
	"strings"
)

// Input validation and sanitization utilities for case intake

// ValidateObjectKey validates an evidence object-storage key
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	// Block path traversal attempts
	cleaned := path.Clean(key)
	if strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, "/../") {
		return fmt.Errorf("path traversal detected")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("object key must be relative")
	}

	// Block dangerous patterns
	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r", "\\"}
	for _, d := range dangerous {
		if strings.Contains(key, d) {
			return fmt.Errorf("invalid characters in object key")
		}
	}

	return nil
}

// ValidateStatusFilter checks a case-status filter value
func ValidateStatusFilter(status string) error {
	allowed := map[string]bool{
		"PENDING":   true,
		"ANALYZING": true,
		"SOLVED":    true,
	}
	if !allowed[strings.ToUpper(status)] {
		return fmt.Errorf("invalid status: %s (allowed: PENDING, ANALYZING, SOLVED)", status)
	}
	return nil
}
