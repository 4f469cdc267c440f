// Package memory is a process-local cache table for tests and short-lived
// CLI runs.
package memory

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

type Store struct {
	items *gocache.Cache
}

func New() *Store {
	return &Store{items: gocache.New(gocache.NoExpiration, 0)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := s.items.Get(key)
	if !ok {
		return nil, false
	}
	raw, ok := value.([]byte)
	return raw, ok
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.items.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	return nil
}

func (s *Store) PutMany(ctx context.Context, entries map[string][]byte) error {
	for key, value := range entries {
		if err := s.Put(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Reset(context.Context) error {
	s.items.Flush()
	return nil
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}
