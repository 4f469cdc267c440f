package usecase

import (
	"context"
	"testing"
)

func TestCachesResetSelectedTables(t *testing.T) {
	caches := Caches{
		Normalized:   newCacheFake(),
		Embeddings:   newCacheFake(),
		GroupNames:   newCacheFake(),
		Descriptions: newCacheFake(),
	}

	if err := caches.Reset(context.Background(), "embeddings"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if caches.Embeddings.(*cacheFake).resets != 1 || caches.Normalized.(*cacheFake).resets != 0 {
		t.Fatalf("expected only the embeddings table to be reset")
	}

	if err := caches.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	for name, store := range caches.ByName() {
		if store.(*cacheFake).resets == 0 {
			t.Fatalf("table %s was not reset", name)
		}
	}

	if err := caches.Reset(context.Background(), "unknown"); err == nil {
		t.Fatalf("expected error for unknown table")
	}
}

func TestReadCachedIgnoresCorruptValues(t *testing.T) {
	store := newCacheFake()
	_ = store.Put(context.Background(), "k", []byte("{not json"))

	if _, ok := readCached[[]float32](context.Background(), store, "k"); ok {
		t.Fatalf("corrupt value must be treated as a miss")
	}
}
