// Package extractor routes documents to a text extractor by file extension.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/document-sorter/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/document-sorter/internal/infrastructure/extractor/xlsx"
)

type Registry struct {
	byExtension map[string]ports.TextExtractor
	fallback    ports.TextExtractor
}

// NewRegistry registers the built-in extractors; anything unknown is read as
// UTF-8 text.
func NewRegistry() *Registry {
	r := &Registry{
		byExtension: make(map[string]ports.TextExtractor),
		fallback:    plaintext.NewExtractor(),
	}
	r.Register(pdf.NewExtractor(), ".pdf")
	r.Register(xlsx.NewExtractor(), ".xlsx", ".xlsm")
	return r
}

func (r *Registry) Register(extractor ports.TextExtractor, extensions ...string) {
	for _, ext := range extensions {
		r.byExtension[strings.ToLower(ext)] = extractor
	}
}

func (r *Registry) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if extractor, ok := r.byExtension[ext]; ok {
		return extractor.Extract(ctx, filename, content)
	}
	return r.fallback.Extract(ctx, filename, content)
}
