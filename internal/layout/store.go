package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrInvalidConfig is returned when the layout file cannot be decoded.
var ErrInvalidConfig = errors.New("layout: invalid config file")

// Store persists a Config as a JSON file and keeps the last loaded or
// saved copy in memory.
type Store struct {
	path    string
	current Config
	mu      sync.RWMutex
}

// NewStore creates a store for path. Nothing is read until Load.
func NewStore(path string) *Store {
	return &Store{path: path, current: Default()}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load reads the layout file. A missing file yields Default.
func (s *Store) Load() (Config, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		s.set(cfg)
		return cfg.Clone(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("layout: read %s: %w", s.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, s.path, err)
	}
	s.set(cfg)
	return cfg.Clone(), nil
}

// Save validates cfg and replaces the layout file atomically.
func (s *Store) Save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("layout: encode: %w", err)
	}
	data = append(data, '\n')

	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	s.set(cfg)
	return nil
}

// Current returns a copy of the last loaded or saved config.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Store) set(cfg Config) {
	s.mu.Lock()
	s.current = cfg.Clone()
	s.mu.Unlock()
}

// writeAtomic writes data to a temp file next to path, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("layout: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".layout-*.json")
	if err != nil {
		return fmt.Errorf("layout: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("layout: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("layout: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("layout: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("layout: rename: %w", err)
	}
	return nil
}
