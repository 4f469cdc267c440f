package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

const defaultEmbedBatchSize = 48

// EmbeddingCache resolves texts to vectors through a content-addressed cache,
// sending only unique misses to the provider in fixed-size batches.
type EmbeddingCache struct {
	provider  ports.EmbeddingProvider
	cache     ports.CacheStore
	batchSize int
	logger    *slog.Logger
}

func NewEmbeddingCache(provider ports.EmbeddingProvider, cache ports.CacheStore, batchSize int, logger *slog.Logger) *EmbeddingCache {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingCache{
		provider:  provider,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Embed returns exactly one vector per input text, in input order. Texts of a
// batch that failed twice get sentinel vectors; other batches are unaffected.
func (e *EmbeddingCache) Embed(ctx context.Context, texts []string) ([]domain.EmbeddingVector, domain.StageReport) {
	report := domain.StageReport{Stage: domain.StageEmbed}
	resolved := make(map[string]domain.EmbeddingVector, len(texts))

	var (
		missKeys  []string
		missTexts []string
	)
	seen := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		key := domain.Hash(text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if values, ok := readCached[[]float32](ctx, e.cache, key); ok && len(values) > 0 {
			resolved[key] = domain.EmbeddingVector{Values: values}
			report.Record(domain.OutcomeCached)
			continue
		}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += e.batchSize {
		end := min(start+e.batchSize, len(missTexts))
		keys := missKeys[start:end]

		vectors, err := e.embedBatch(ctx, missTexts[start:end])
		if err != nil {
			e.logger.Warn("embed_batch_failed", "batch_start", start, "batch_size", len(keys), "error", err)
			for _, key := range keys {
				resolved[key] = domain.EmbeddingVector{Sentinel: true}
				report.Failed++
			}
			continue
		}

		entries := make(map[string][]byte, len(keys))
		for i, key := range keys {
			if len(vectors[i]) == 0 {
				resolved[key] = domain.EmbeddingVector{Sentinel: true}
				report.Failed++
				continue
			}
			resolved[key] = domain.EmbeddingVector{Values: vectors[i]}
			report.Record(domain.OutcomeLive)
			raw, err := json.Marshal(vectors[i])
			if err != nil {
				continue
			}
			entries[key] = raw
		}
		if e.cache != nil {
			if err := e.cache.PutMany(ctx, entries); err != nil {
				e.logger.Warn("embed_cache_write_failed", "error", err)
			}
		}
	}

	out := make([]domain.EmbeddingVector, len(texts))
	for i, text := range texts {
		out[i] = resolved[domain.Hash(text)]
	}
	return out, report
}

func (e *EmbeddingCache) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("embedding provider is not configured")
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors, err := e.provider.Embed(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = domain.WrapError(
				domain.ErrMalformedResponse,
				"embed batch",
				fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)),
			)
		}
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
