package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	// ConfigDir is the directory name under ~/.config.
	ConfigDir = "hark"
	// ConfigFile is the config file name.
	ConfigFile = "config.json"
)

// FileSystem abstracts the file operations the loader needs.
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

type osFileSystem struct{}

func (osFileSystem) UserHomeDir() (string, error) { return os.UserHomeDir() }

func (osFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Loader reads configuration through an injected filesystem.
type Loader struct {
	fs FileSystem
}

// NewLoader creates a Loader over the real filesystem.
func NewLoader() *Loader {
	return &Loader{fs: osFileSystem{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem.
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads ~/.config/hark/config.json over the defaults. A missing file or
// unresolvable home directory yields the defaults; parse, permission and
// validation failures are errors. JSON is unmarshalled directly over the
// default struct, so present keys override defaults (even with zero values)
// while missing keys leave them untouched.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	data, err := l.fs.ReadFile(filepath.Join(homeDir, ".config", ConfigDir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is a convenience function using the default loader.
func Load() (*Config, error) {
	return NewLoader().Load()
}
