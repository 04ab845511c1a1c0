package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.feira.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".feira")
}

// Dir returns the directory holding one profile's local state.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// DBPath returns the profile's local store path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "feira.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
