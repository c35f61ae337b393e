package permission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const (
	// SettingsDir is the workspace-local settings directory.
	SettingsDir = ".hark"
	// SettingsFile holds the persisted permission lists.
	SettingsFile = "settings.json"
)

// Config holds the persisted permission lists. Keys follow the
// Key/PrefixRule conventions. The allow list stays sorted and deduplicated.
type Config struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
	Ask   []string `json:"ask"`
}

type settingsFile struct {
	Permissions Config `json:"permissions"`
}

// Store persists permission config as JSON under the workspace settings
// path. Writes are merge-on-read: safe for a single-operator CLI, not
// hardened against concurrent multi-process writers.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store rooted at the given workspace directory.
func NewStore(workspaceDir string) *Store {
	return &Store{path: filepath.Join(workspaceDir, SettingsDir, SettingsFile)}
}

// Load reads the persisted config. A missing file yields an empty config.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read permission settings: %w", err)
	}

	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse permission settings %s: %w", s.path, err)
	}
	return &f.Permissions, nil
}

// AppendAllow merges one entry into the persisted allow list, keeping the
// list sorted and deduplicated, and returns the updated config.
func (s *Store) AppendAllow(entry string) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}

	cfg.Allow = append(cfg.Allow, entry)
	slices.Sort(cfg.Allow)
	cfg.Allow = slices.Compact(cfg.Allow)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(settingsFile{Permissions: *cfg}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write permission settings: %w", err)
	}
	return cfg, nil
}
