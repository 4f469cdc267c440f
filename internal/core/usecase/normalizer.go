package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

const (
	defaultSnippetChars     = 2500
	defaultNormalizeWorkers = 6
)

type NormalizerConfig struct {
	SnippetChars int
	Workers      int
}

// Normalizer turns documents into canonical records. It never fails: a broken
// or malformed summarizer response degrades to a filename-derived record.
type Normalizer struct {
	summarizer   ports.Summarizer
	cache        ports.CacheStore
	snippetChars int
	workers      int
	logger       *slog.Logger
}

func NewNormalizer(summarizer ports.Summarizer, cache ports.CacheStore, cfg NormalizerConfig, logger *slog.Logger) *Normalizer {
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = defaultSnippetChars
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultNormalizeWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		summarizer:   summarizer,
		cache:        cache,
		snippetChars: cfg.SnippetChars,
		workers:      cfg.Workers,
		logger:       logger,
	}
}

func (n *Normalizer) Normalize(ctx context.Context, doc domain.Document, guide *domain.Outline) domain.NormalizeResult {
	key := normalizeKey(doc.ID, guide)
	if record, ok := readCached[domain.NormalizedRecord](ctx, n.cache, key); ok && record.Valid() {
		return domain.NormalizeResult{Record: record, Outcome: domain.OutcomeCached}
	}

	record, err := n.summarize(ctx, doc, guide)
	if err != nil {
		n.logger.Warn("normalize_fallback", "document", doc.ID, "error", err)
		return domain.NormalizeResult{
			Record:  domain.FallbackRecord(doc.Filename),
			Outcome: domain.OutcomeFallback,
			Reason:  err.Error(),
		}
	}

	if err := writeCached(ctx, n.cache, key, record); err != nil {
		n.logger.Warn("normalize_cache_write_failed", "document", doc.ID, "error", err)
	}
	return domain.NormalizeResult{Record: record, Outcome: domain.OutcomeLive}
}

// NormalizeAll runs Normalize over a bounded worker pool and returns results
// in input order.
func (n *Normalizer) NormalizeAll(
	ctx context.Context,
	docs []domain.Document,
	guide *domain.Outline,
	progress domain.ProgressFunc,
) ([]domain.NormalizeResult, domain.StageReport) {
	results := make([]domain.NormalizeResult, len(docs))
	report := domain.StageReport{Stage: domain.StageNormalize}

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(n.workers)
	for i := range docs {
		g.Go(func() error {
			result := n.Normalize(ctx, docs[i], guide)
			results[i] = result

			mu.Lock()
			defer mu.Unlock()
			report.Record(result.Outcome)
			done++
			if progress != nil {
				progress(domain.StageNormalize, done, len(docs))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, report
}

func (n *Normalizer) summarize(ctx context.Context, doc domain.Document, guide *domain.Outline) (domain.NormalizedRecord, error) {
	if n.summarizer == nil {
		return domain.NormalizedRecord{}, errors.New("summarizer is not configured")
	}
	record, err := n.summarizer.Summarize(ctx, ports.SummarizeRequest{
		Filename:   doc.Filename,
		Text:       truncateRunes(doc.Text, n.snippetChars),
		Categories: guide.Names(),
	})
	if err != nil {
		return domain.NormalizedRecord{}, err
	}
	if !record.Valid() {
		return domain.NormalizedRecord{}, domain.WrapError(
			domain.ErrMalformedResponse,
			"normalize",
			errors.New("response has no embedding_text"),
		)
	}

	record.EmbeddingText = strings.TrimSpace(record.EmbeddingText)
	if strings.TrimSpace(record.CanonicalTitle) == "" {
		record.CanonicalTitle = domain.TitleFromFilename(doc.Filename)
	}
	if record.Keywords == nil {
		record.Keywords = []string{}
	}
	if strings.TrimSpace(record.Domain) == "" {
		record.Domain = domain.UncategorizedDomain
	}
	return record, nil
}

func normalizeKey(documentID string, guide *domain.Outline) string {
	if guide.Empty() {
		return domain.Hash(documentID)
	}
	return domain.Hash(documentID + "|" + domain.Hash(guide.Text()))
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
