package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"noise-cleaner/internal/domain"
)

// Store defines read access to app settings. The app never writes settings;
// the file exists only when a user creates it.
type Store interface {
	Load() (domain.Settings, error)
}

// TOMLStore reads settings from a single optional TOML file on disk.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// DefaultPath returns the location of the optional config file.
func DefaultPath() string {
	return filepath.Join(AppDir(), "config.toml")
}

// Path returns the file this store reads.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
func (s *TOMLStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parse %s: %w", s.path, err)
	}

	return Normalize(cfg), nil
}
