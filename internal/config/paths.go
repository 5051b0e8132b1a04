package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rescale/bucketdesk/internal/constants"
)

// ConfigDirectory returns the per-user directory holding the config file
// and the socket.
//   - Windows: %APPDATA%\Bucketdesk
//   - Unix: ~/.config/bucketdesk
func ConfigDirectory() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Bucketdesk"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", constants.AppName), nil
}

// ResolveSocketPath returns the socket the long-lived process listens on: the
// configured path if set, otherwise one inside ConfigDirectory.
func (cfg *Config) ResolveSocketPath() string {
	if cfg.SocketPath != "" {
		return cfg.SocketPath
	}
	return DefaultSocketPath()
}

// DefaultSocketPath returns the default socket location, falling back to the
// temp directory when no home directory is available.
func DefaultSocketPath() string {
	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.SocketFileName)
	}
	return filepath.Join(dir, constants.SocketFileName)
}

// EnsureConfigDirectory creates the config directory with owner-only
// permissions.
func EnsureConfigDirectory() error {
	dir, err := ConfigDirectory()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
