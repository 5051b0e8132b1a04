//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// removeStaleSocket deletes a socket file left behind by a previous process.
// Windows reports AF_UNIX sockets as reparse points, so the file is removed
// without inspecting its mode.
func removeStaleSocket(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	return nil
}
