// Package validation checks names that cross from local input into bucket
// keys before they are used.
package validation

import (
	"fmt"
	"strings"
)

// ValidateFilename validates a single file name (not a path) that will become
// the last segment of an object key.
//
// Returns an error if the name:
//   - Is empty, "." or ".."
//   - Contains path separators (/ or \)
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}

	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}

	// separators are rejected above, so only the literal names remain;
	// "foo..bar.txt" is fine
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be '%s'", filename)
	}

	return nil
}

// ValidateBucketName rejects bucket or container names that cannot be sent
// to any provider. Provider-specific rules (length, case) are left to the
// provider.
func ValidateBucketName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("bucket is required")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("bucket name contains null byte: %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("bucket name cannot contain path separators: %s", name)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("bucket name cannot contain whitespace: %q", name)
	}
	return nil
}
