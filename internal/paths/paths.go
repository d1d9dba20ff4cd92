// Package paths resolves configuration, data and domain file locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".ideate"
	DefaultDataDirName   = ".ideate-db"
	DomainsDirName       = "domains"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "IDEATE_CONFIG_DIR"
	EnvDataDir   = "IDEATE_DATA_DIR"
)

// domainExts lists the file extensions recognised as domain files.
var domainExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/ideate (fallback ~/.config/ideate)
// macOS:   ~/Library/Application Support/ideate
// Windows: %APPDATA%/ideate
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "ideate"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "ideate"), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "ideate"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > IDEATE_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > IDEATE_DATA_DIR env > $(CWD)/.ideate-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DomainFiles lists the domain files in <configDir>/domains, sorted by
// name. A missing directory yields no files and no error.
func DomainFiles(configDir string) ([]string, error) {
	dir := filepath.Join(configDir, DomainsDirName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !domainExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
