// Package appdir locates the directory where spaceclient keeps its
// settings file and REPL history.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// DirEnv overrides the data directory.
	DirEnv = "SPACECLIENT_DIR"

	// SettingsFileName is the name of the settings file.
	SettingsFileName = "settings.yaml"

	// HistoryFileName holds the REPL history.
	HistoryFileName = "history"

	// ConfigsDirName holds saved app config documents.
	ConfigsDirName = "configs"
)

var (
	cachedDir string
	mu        sync.RWMutex
)

// Dir returns the data directory path:
//  1. SPACECLIENT_DIR, if set
//  2. macOS: ~/Library/Application Support/spaceclient
//  3. Windows: %APPDATA%\spaceclient
//  4. elsewhere: $XDG_CONFIG_HOME/spaceclient or ~/.config/spaceclient
//
// The directory is not created; see EnsureDir.
func Dir() (string, error) {
	// Fast path: already resolved
	mu.RLock()
	if cachedDir != "" {
		dir := cachedDir
		mu.RUnlock()
		return dir, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	// Another goroutine may have resolved it meanwhile
	if cachedDir != "" {
		return cachedDir, nil
	}
	dir, err := resolveDir()
	if err != nil {
		return "", err
	}
	cachedDir = dir
	return dir, nil
}

func resolveDir() (string, error) {
	if envDir := os.Getenv(DirEnv); envDir != "" {
		return envDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "spaceclient"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			// Fallback if APPDATA is not set
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "spaceclient"), nil
	default:
		// Linux and other Unix-like systems
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "spaceclient"), nil
	}
}

// EnsureDir creates the data directory and its configs subdirectory.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	// MkdirAll creates dir on the way
	configs := filepath.Join(dir, ConfigsDirName)
	if err := os.MkdirAll(configs, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", configs, err)
	}
	return nil
}

// SettingsPath returns the path of the settings file.
func SettingsPath() (string, error) {
	return join(SettingsFileName)
}

// HistoryPath returns the path of the REPL history file.
func HistoryPath() (string, error) {
	return join(HistoryFileName)
}

// ConfigsDir returns the directory for saved app configs.
func ConfigsDir() (string, error) {
	return join(ConfigsDirName)
}

func join(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ResetCache clears the cached directory. Used by tests.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cachedDir = ""
}
