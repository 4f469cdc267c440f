package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/document-sorter/internal/core/domain"
)

func TestNameGroupIsOrderIndependentAndCached(t *testing.T) {
	generator := &generatorFake{name: func([]string) string { return "Tax Returns 2024!" }}
	n := NewNamer(generator, newCacheFake(), newCacheFake(), nil)

	first, firstOutcome := n.NameGroup(context.Background(), []string{"b", "a", "c"})
	second, secondOutcome := n.NameGroup(context.Background(), []string{"c", "b", "a"})

	if first != "Tax_Returns_2024" {
		t.Fatalf("unexpected sanitized name: %q", first)
	}
	if first != second {
		t.Fatalf("permuted titles gave different names: %q vs %q", first, second)
	}
	if firstOutcome != domain.OutcomeLive || secondOutcome != domain.OutcomeCached {
		t.Fatalf("unexpected outcomes: %s, %s", firstOutcome, secondOutcome)
	}
	if generator.nameCalls != 1 {
		t.Fatalf("expected one generator call, got %d", generator.nameCalls)
	}
}

func TestNameGroupFallback(t *testing.T) {
	generator := &generatorFake{nameErr: errors.New("timeout")}
	names := newCacheFake()
	n := NewNamer(generator, names, newCacheFake(), nil)

	name, outcome := n.NameGroup(context.Background(), []string{"invoice march", "invoice april", "receipt"})
	if outcome != domain.OutcomeFallback {
		t.Fatalf("expected fallback, got %s", outcome)
	}
	if name != "invoice" {
		t.Fatalf("unexpected fallback name: %q", name)
	}
	if names.len() != 0 {
		t.Fatalf("fallback names must not be cached")
	}
}

func TestDescribeGroupMarksForcedSplit(t *testing.T) {
	generator := &generatorFake{}
	descriptions := newCacheFake()
	n := NewNamer(generator, newCacheFake(), descriptions, nil)

	organic, _ := n.DescribeGroup(context.Background(), "Taxes", []string{"b.pdf", "a.pdf"}, false)
	forced, _ := n.DescribeGroup(context.Background(), "Taxes", []string{"a.pdf", "b.pdf"}, true)
	again, outcome := n.DescribeGroup(context.Background(), "Taxes", []string{"b.pdf", "a.pdf"}, true)

	if strings.HasPrefix(organic, SizeLimitNotice) {
		t.Fatalf("organic description must not carry the size notice")
	}
	if !strings.HasPrefix(forced, SizeLimitNotice) {
		t.Fatalf("forced description must start with the size notice: %q", forced)
	}
	if outcome != domain.OutcomeCached || again != forced {
		t.Fatalf("expected cached forced description, got %s", outcome)
	}
	if generator.describeCall != 2 {
		t.Fatalf("expected 2 generator calls, got %d", generator.describeCall)
	}
}

func TestDescribeGroupFallbackListsFiles(t *testing.T) {
	generator := &generatorFake{describeErr: errors.New("down")}
	n := NewNamer(generator, newCacheFake(), newCacheFake(), nil)

	text, outcome := n.DescribeGroup(context.Background(), "Travel", []string{"z.txt", "a.txt"}, true)
	if outcome != domain.OutcomeFallback {
		t.Fatalf("expected fallback, got %s", outcome)
	}
	if !strings.HasPrefix(text, SizeLimitNotice) {
		t.Fatalf("fallback for a forced group must carry the notice")
	}
	if strings.Index(text, "- a.txt") > strings.Index(text, "- z.txt") {
		t.Fatalf("expected sorted file list: %q", text)
	}
}

func TestSanitizeFolderName(t *testing.T) {
	cases := map[string]string{
		"  Hello   World ":    "Hello_World",
		"Отчёты/2024":         "Отчёты2024",
		"__a__":               "a",
		"!!!":                 "uncategorized",
		"":                    "uncategorized",
		"Project: Alpha-Beta": "Project_AlphaBeta",
		"snake_case name":     "snake_case_name",
	}
	for input, want := range cases {
		if got := SanitizeFolderName(input); got != want {
			t.Fatalf("SanitizeFolderName(%q) = %q, want %q", input, got, want)
		}
	}

	long := strings.Repeat("a", 200)
	if got := SanitizeFolderName(long); len([]rune(got)) > maxFolderNameRunes {
		t.Fatalf("expected name capped at %d runes, got %d", maxFolderNameRunes, len(got))
	}
}

func TestUniqueName(t *testing.T) {
	used := map[string]struct{}{}
	got := []string{
		UniqueName("Taxes", used),
		UniqueName("Taxes", used),
		UniqueName("Taxes", used),
		UniqueName("Travel", used),
	}
	want := []string{"Taxes", "Taxes_1", "Taxes_2", "Travel"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueName #%d = %q, want %q", i, got[i], want[i])
		}
	}
}
