package usecase

import (
	"context"
	"slices"
	"testing"
)

func TestEmbedDeduplicatesAndKeepsOrder(t *testing.T) {
	provider := &embedderFake{}
	cache := NewEmbeddingCache(provider, newCacheFake(), 8, nil)

	vectors, report := cache.Embed(context.Background(), []string{"a", "bb", "a"})

	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if !slices.Equal(vectors[0].Values, vectors[2].Values) {
		t.Fatalf("expected identical vectors for duplicate text: %v vs %v", vectors[0], vectors[2])
	}
	if len(provider.calls) != 1 || !slices.Equal(provider.calls[0], []string{"a", "bb"}) {
		t.Fatalf("expected one deduplicated call, got %v", provider.calls)
	}
	if report.Live != 2 {
		t.Fatalf("expected 2 live embeddings, got %+v", report)
	}
}

func TestEmbedServesSecondCallFromCache(t *testing.T) {
	provider := &embedderFake{}
	store := newCacheFake()
	cache := NewEmbeddingCache(provider, store, 8, nil)

	first, _ := cache.Embed(context.Background(), []string{"alpha", "beta"})
	second, report := cache.Embed(context.Background(), []string{"beta", "alpha"})

	if len(provider.calls) != 1 {
		t.Fatalf("expected provider to be called once, got %d", len(provider.calls))
	}
	if report.Cached != 2 || report.Live != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !slices.Equal(first[0].Values, second[1].Values) {
		t.Fatalf("cached vector mismatch")
	}
	if store.putManys != 1 {
		t.Fatalf("expected one batch write, got %d", store.putManys)
	}
}

func TestEmbedFailedBatchGetsSentinelsOnly(t *testing.T) {
	provider := &embedderFake{failWhen: func(texts []string) bool {
		return slices.Contains(texts, "a")
	}}
	store := newCacheFake()
	cache := NewEmbeddingCache(provider, store, 2, nil)

	vectors, report := cache.Embed(context.Background(), []string{"a", "b", "c"})

	if !vectors[0].Sentinel || !vectors[1].Sentinel {
		t.Fatalf("expected sentinels for the failed batch: %+v", vectors[:2])
	}
	if vectors[2].Sentinel || len(vectors[2].Values) == 0 {
		t.Fatalf("expected a real vector for the healthy batch: %+v", vectors[2])
	}
	// failed batch is retried once, healthy batch succeeds first time
	if len(provider.calls) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(provider.calls))
	}
	if report.Failed != 2 || report.Live != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.len() != 1 {
		t.Fatalf("sentinels must not be cached, store has %d entries", store.len())
	}
}

func TestEmbedCountMismatchYieldsSentinels(t *testing.T) {
	provider := &embedderFake{short: true}
	cache := NewEmbeddingCache(provider, newCacheFake(), 8, nil)

	vectors, report := cache.Embed(context.Background(), []string{"x", "y"})
	for i, vector := range vectors {
		if !vector.Sentinel {
			t.Fatalf("vector %d: expected sentinel", i)
		}
	}
	if report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
