package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-downloader/internal/domain"
)

// Store defines persistence operations for user preferences.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists preferences in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed preferences store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads preferences from disk or returns defaults when missing.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, err
	}

	cfg := DefaultSettings()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return Normalize(cfg), nil
}

// Save writes preferences as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(Normalize(cfg), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// RememberDirectory persists dir as the last selected output directory.
func RememberDirectory(store Store, dir string) (domain.Settings, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return domain.Settings{}, fmt.Errorf("directory is empty")
	}

	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	settings.LastDirectory = dir
	if err := store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return settings, nil
}

// Normalize trims user inputs and applies the fixed container when empty.
func Normalize(settings domain.Settings) domain.Settings {
	settings.LastDirectory = strings.TrimSpace(settings.LastDirectory)
	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	settings.YTDLPPath = strings.TrimSpace(settings.YTDLPPath)
	settings.Container = strings.ToLower(strings.TrimSpace(settings.Container))
	if settings.Container == "" {
		settings.Container = domain.DefaultContainer
	}
	return settings
}
