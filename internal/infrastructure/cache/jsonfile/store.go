// Package jsonfile stores one cache table as a single JSON object on disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store keeps the table in memory and rewrites the file atomically on every
// write. A missing or corrupt file loads as an empty table.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]json.RawMessage
	logger  *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &Store{path: path, entries: make(map[string]json.RawMessage), logger: logger}
	s.load()
	return s, nil
}

func (s *Store) load() {
	if entries := s.readFile(); entries != nil {
		s.entries = entries
	}
}

// readFile returns the table currently on disk, or nil when it is missing or
// unreadable.
func (s *Store) readFile() map[string]json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache_read_failed", "path", s.path, "error", err)
		}
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("cache_corrupt", "path", s.path, "error", err)
		return nil
	}
	return entries
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.PutMany(ctx, map[string][]byte{key: value})
}

// PutMany adds all entries with a single file write. Keys another process
// wrote to the file since it was loaded are merged in first, so processes
// sharing a cache dir only overwrite each other on the same key.
func (s *Store) PutMany(_ context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range entries {
		if !json.Valid(value) {
			return fmt.Errorf("cache value for %s is not valid json", key)
		}
	}
	for key, value := range s.readFile() {
		if _, ok := s.entries[key]; !ok {
			s.entries[key] = value
		}
	}
	for key, value := range entries {
		s.entries[key] = json.RawMessage(append([]byte(nil), value...))
	}
	return s.flush()
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]json.RawMessage)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) flush() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
