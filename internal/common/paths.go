// Package common holds small filesystem helpers shared by the config and
// logging layers.
package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanPath sanitizes a secret or config file path and makes it absolute.
// Paths that still contain a parent reference after cleaning are rejected.
func CleanPath(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path %q: contains directory traversal", path)
	}

	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}

	return cleaned, nil
}
