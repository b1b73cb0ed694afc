// Package filestore is the fallback backend: each record kind lives in a
// flat JSON file inside the data directory. It is used when the SQLite
// engine cannot be opened and trades structure for availability.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File keys, one JSON document per key.
const (
	KeyTokens    = "tokens"
	KeyUser      = "current_user"
	KeyLinks     = "magic_links"
	KeySyncLog   = "sync_log"
	KeySyncEvent = "sync_event"
)

// Store serializes access to the data directory. One mutex guards all
// keys: the fallback is a single-writer store, mirroring its origin.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file backing a key.
func Path(dir, key string) string {
	return filepath.Join(dir, key+".json")
}

// read unmarshals the key's file into v. A missing file leaves v at its
// zero value and returns nil.
func (s *Store) read(key string, v any) error {
	b, err := os.ReadFile(Path(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// write replaces the key's file atomically (temp file + rename) so a
// crash mid-write never leaves a truncated document behind.
func (s *Store) write(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	path := Path(s.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// remove deletes the key's file. Missing files are fine.
func (s *Store) remove(key string) error {
	err := os.Remove(Path(s.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
