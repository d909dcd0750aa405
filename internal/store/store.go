// Package store persists the application whitelist and session history as a
// single JSON document. Load and save are whole-document operations; there is
// no incremental update, so callers must always supply the complete state they
// wish to retain.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DataFileName is the well-known document name under the data directory.
const DataFileName = "performance_guard_data.json"

// Store owns the on-disk document. Concurrent external writers are not
// supported; the process using the store is assumed to be the only writer.
type Store struct {
	path string
}

// New creates a store bound to an explicit document path.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath resolves the per-user document location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "perfguard", DataFileName), nil
}

// Path reports the document location the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole document. A missing file is not an error: it yields the
// empty default document. Any other read or decode failure is propagated.
func (s *Store) Load() (AppData, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return AppData{}, nil
	}
	if err != nil {
		return AppData{}, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var data AppData
	if err := json.Unmarshal(raw, &data); err != nil {
		return AppData{}, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return data, nil
}

// Save overwrites the whole document in one pass, creating the containing
// directory first if it does not exist. No retries are performed.
func (s *Store) Save(data AppData) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data dir %q: %w", dir, err)
		}
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding app data: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
