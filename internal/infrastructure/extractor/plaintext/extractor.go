package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, filename string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("unsupported binary format: %s", filename)
	}
	text := strings.TrimPrefix(string(content), "\uFEFF")
	return strings.TrimSpace(text), nil
}
