// Package storage keeps a registry of known weight files and the constants
// they must be loaded with.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "chessnnue"

// DataDirPath returns the platform-specific data directory without creating it.
// - macOS: ~/Library/Application Support/chessnnue/
// - Linux: $XDG_DATA_HOME/chessnnue/ or ~/.local/share/chessnnue/
// - Windows: %APPDATA%/chessnnue/
func DataDirPath() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	return filepath.Join(baseDir, appName), nil
}

// NNUEDirPath returns where weight files are looked up by default. Nothing is created.
func NNUEDirPath() (string, error) {
	return subDirPath("nnue")
}

// GetDatabaseDir returns the registry database directory, creating it if needed.
func GetDatabaseDir() (string, error) {
	return ensureSubDir("registry")
}

func subDirPath(name string) (string, error) {
	dataDir, err := DataDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

func ensureSubDir(name string) (string, error) {
	dir, err := subDirPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
