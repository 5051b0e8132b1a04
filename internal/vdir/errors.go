package vdir

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the current folder has no child with that name
	ErrNotFound = errors.New("no such file or folder")

	// ErrNotAFolder indicates the navigation target is a file
	ErrNotAFolder = errors.New("not a folder")

	// ErrNotAFile indicates a file operation on a folder
	ErrNotAFile = errors.New("not a file")

	// ErrConflict indicates a key needs a path segment that already exists as
	// the other variant
	ErrConflict = errors.New("path conflicts with an existing entry")

	// ErrEmptyKey indicates an entry without a usable key
	ErrEmptyKey = errors.New("empty key")
)

// Error wraps navigation and build failures with the operation and the path
// it was applied to.
type Error struct {
	Op   string // Operation that failed (e.g., "cd", "lookup", "insert")
	Path string // Affected path
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// Operation names used in Error.Op
const (
	OpChangeDir = "cd"
	OpLookup    = "lookup"
	OpInsert    = "insert"
)
