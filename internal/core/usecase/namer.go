package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

// SizeLimitNotice is prepended to descriptions of groups produced by the
// size-enforcement chunking path.
const SizeLimitNotice = "> **Note:** this folder was split to respect the maximum group size. " +
	"Its documents were grouped in upload order, not by topic.\n\n"

const maxFolderNameRunes = 80

// Namer derives folder names and Markdown descriptions for groups. Both are
// cached by order-independent content keys.
type Namer struct {
	generator    ports.GroupTextGenerator
	names        ports.CacheStore
	descriptions ports.CacheStore
	logger       *slog.Logger
}

func NewNamer(generator ports.GroupTextGenerator, names, descriptions ports.CacheStore, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		generator:    generator,
		names:        names,
		descriptions: descriptions,
		logger:       logger,
	}
}

func (n *Namer) NameGroup(ctx context.Context, titles []string) (string, domain.Outcome) {
	sorted := sortedCopy(titles)
	key := domain.Hash(strings.Join(sorted, "||"))
	if name, ok := readCached[string](ctx, n.names, key); ok && name != "" {
		return name, domain.OutcomeCached
	}

	if n.generator != nil {
		raw, err := n.generator.GenerateGroupName(ctx, sorted)
		if err == nil && strings.TrimSpace(raw) != "" {
			name := SanitizeFolderName(raw)
			if err := writeCached(ctx, n.names, key, name); err != nil {
				n.logger.Warn("group_name_cache_write_failed", "error", err)
			}
			return name, domain.OutcomeLive
		}
		if err == nil {
			err = domain.WrapError(domain.ErrMalformedResponse, "name group", fmt.Errorf("empty name"))
		}
		n.logger.Warn("group_name_fallback", "titles", len(sorted), "error", err)
	}
	return FallbackGroupName(sorted), domain.OutcomeFallback
}

func (n *Namer) DescribeGroup(ctx context.Context, topic string, filenames []string, forced bool) (string, domain.Outcome) {
	sorted := sortedCopy(filenames)
	mode := "nosplit"
	if forced {
		mode = "split"
	}
	key := domain.Hash(mode + topic + "||" + strings.Join(sorted, "||"))
	if text, ok := readCached[string](ctx, n.descriptions, key); ok && text != "" {
		return text, domain.OutcomeCached
	}

	if n.generator != nil {
		text, err := n.generator.GenerateDescription(ctx, topic, sorted)
		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			if forced {
				text = SizeLimitNotice + text
			}
			if err := writeCached(ctx, n.descriptions, key, text); err != nil {
				n.logger.Warn("description_cache_write_failed", "error", err)
			}
			return text, domain.OutcomeLive
		}
		if err == nil {
			err = domain.WrapError(domain.ErrMalformedResponse, "describe group", fmt.Errorf("empty description"))
		}
		n.logger.Warn("description_fallback", "topic", topic, "error", err)
	}
	return FallbackDescription(topic, sorted, forced), domain.OutcomeFallback
}

// SanitizeFolderName keeps letters, marks, digits, underscores and spaces,
// turns whitespace runs into underscores and caps the length.
func SanitizeFolderName(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	name := strings.Join(strings.Fields(b.String()), "_")
	name = strings.Trim(name, "_")
	if runes := []rune(name); len(runes) > maxFolderNameRunes {
		name = strings.TrimRight(string(runes[:maxFolderNameRunes]), "_")
	}
	if name == "" {
		return domain.UncategorizedDomain
	}
	return name
}

// FallbackGroupName picks the most frequent title word (ties broken
// lexicographically).
func FallbackGroupName(titles []string) string {
	counts := make(map[string]int)
	for _, title := range titles {
		for _, word := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if len([]rune(word)) < 2 {
				continue
			}
			counts[word]++
		}
	}
	best, bestCount := "", 0
	for word, count := range counts {
		if count > bestCount || (count == bestCount && word < best) {
			best, bestCount = word, count
		}
	}
	return SanitizeFolderName(best)
}

func FallbackDescription(topic string, filenames []string, forced bool) string {
	var b strings.Builder
	if forced {
		b.WriteString(SizeLimitNotice)
	}
	b.WriteString("# ")
	b.WriteString(topic)
	b.WriteString("\n\nDocuments in this folder:\n\n")
	for _, name := range filenames {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return b.String()
}

// UniqueName returns base, or base with the first free numeric suffix, and
// records the result in used.
func UniqueName(base string, used map[string]struct{}) string {
	name := base
	for i := 1; ; i++ {
		if _, taken := used[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
	used[name] = struct{}{}
	return name
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
