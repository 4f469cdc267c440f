package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/document-sorter/internal/core/ports"
)

// CacheTables lists the table names accepted by Caches.Reset.
var CacheTables = []string{"normalized", "embeddings", "group_names", "descriptions"}

// Caches groups the four content-addressed tables of the pipeline.
type Caches struct {
	Normalized   ports.CacheStore
	Embeddings   ports.CacheStore
	GroupNames   ports.CacheStore
	Descriptions ports.CacheStore
}

func (c Caches) ByName() map[string]ports.CacheStore {
	return map[string]ports.CacheStore{
		"normalized":   c.Normalized,
		"embeddings":   c.Embeddings,
		"group_names":  c.GroupNames,
		"descriptions": c.Descriptions,
	}
}

// Reset clears the named tables, or all of them when names is empty.
func (c Caches) Reset(ctx context.Context, names ...string) error {
	tables := c.ByName()
	if len(names) == 0 {
		names = CacheTables
	}
	for _, name := range names {
		store, ok := tables[name]
		if !ok {
			return fmt.Errorf("unknown cache table %q", name)
		}
		if store == nil {
			continue
		}
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("reset cache %s: %w", name, err)
		}
	}
	return nil
}

func readCached[T any](ctx context.Context, store ports.CacheStore, key string) (T, bool) {
	var out T
	if store == nil {
		return out, false
	}
	raw, ok := store.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

func writeCached(ctx context.Context, store ports.CacheStore, key string, value any) error {
	if store == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return store.Put(ctx, key, raw)
}
