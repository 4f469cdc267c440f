// Package prompt holds the prompts and response parsing shared by the LLM
// provider adapters.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/llmhttp"
)

const (
	SummarySystem     = "You normalize documents so they are easy to classify. You never group or classify them yourself."
	GroupNameSystem   = "You only output short folder names."
	DescriptionSystem = "You write concise README files in Markdown."
)

func Summary(req ports.SummarizeRequest) string {
	var b strings.Builder
	b.WriteString(`Extract the meaning of the document below so it can be clustered later.
Do not group or classify it.
Return exactly one JSON object with keys:
canonical_title (string), keywords (array of strings), domain (string), embedding_text (string).
No markdown, no extra keys.
`)
	if len(req.Categories) > 0 {
		b.WriteString("\nThe domain must be exactly one of: ")
		b.WriteString(strings.Join(req.Categories, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nFilename:\n")
	b.WriteString(req.Filename)
	if strings.TrimSpace(req.Text) != "" {
		b.WriteString("\n\nContent:\n")
		b.WriteString(req.Text)
	}
	b.WriteString("\n")
	return b.String()
}

func GroupName(titles []string) string {
	return `Output one short, clear folder name describing the common topic of the document titles below.
Rules:
- 2 to 4 words
- no numbers
- no explanation

Titles:
` + strings.Join(titles, "\n") + "\n"
}

func Description(topic string, filenames []string) string {
	return fmt.Sprintf(`The documents below were grouped under the topic '%s'.
Write a README.md that explains the shared theme, why each document belongs here and how they are useful together.

Documents:
%s
`, topic, strings.Join(filenames, "\n"))
}

// ParseRecord decodes a summary response. Missing embedding_text is reported
// as a malformed response.
func ParseRecord(raw string) (domain.NormalizedRecord, error) {
	var payload struct {
		CanonicalTitle string          `json:"canonical_title"`
		Keywords       json.RawMessage `json:"keywords"`
		Domain         string          `json:"domain"`
		EmbeddingText  string          `json:"embedding_text"`
	}
	if err := json.Unmarshal([]byte(llmhttp.ExtractJSONObject(raw)), &payload); err != nil {
		return domain.NormalizedRecord{}, domain.WrapError(domain.ErrMalformedResponse, "parse summary", err)
	}
	if strings.TrimSpace(payload.EmbeddingText) == "" {
		return domain.NormalizedRecord{}, domain.WrapError(
			domain.ErrMalformedResponse,
			"parse summary",
			fmt.Errorf("missing embedding_text"),
		)
	}
	return domain.NormalizedRecord{
		CanonicalTitle: strings.TrimSpace(payload.CanonicalTitle),
		Keywords:       parseKeywords(payload.Keywords),
		Domain:         strings.TrimSpace(payload.Domain),
		EmbeddingText:  strings.TrimSpace(payload.EmbeddingText),
	}, nil
}

// parseKeywords accepts a list or a comma separated string.
func parseKeywords(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		for _, item := range strings.Split(joined, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// CleanName strips quotes and markdown emphasis models like to add.
func CleanName(raw string) string {
	line := strings.TrimSpace(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.Trim(line, "\"'`*# ")
}
