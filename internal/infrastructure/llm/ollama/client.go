package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/document-sorter/internal/infrastructure/resilience"
)

type Client struct {
	http       *llmhttp.Client
	genModel   string
	embedModel string
}

func New(baseURL, genModel, embedModel string, timeout time.Duration, executor *resilience.Executor) *Client {
	return &Client{
		http:       llmhttp.New("ollama", baseURL, executor, llmhttp.WithTimeout(timeout)),
		genModel:   genModel,
		embedModel: embedModel,
	}
}

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, req ports.SummarizeRequest) (domain.NormalizedRecord, error) {
	respText, err := s.client.generate(ctx, prompt.SummarySystem, prompt.Summary(req), true)
	if err != nil {
		return domain.NormalizedRecord{}, err
	}
	return prompt.ParseRecord(respText)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.http.PostJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrMalformedResponse,
			"ollama embed",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(response.Embeddings), len(texts)),
		)
	}
	return response.Embeddings, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateGroupName(ctx context.Context, titles []string) (string, error) {
	text, err := g.client.generate(ctx, prompt.GroupNameSystem, prompt.GroupName(titles), false)
	if err != nil {
		return "", err
	}
	return prompt.CleanName(text), nil
}

func (g *Generator) GenerateDescription(ctx context.Context, topic string, filenames []string) (string, error) {
	return g.client.generate(ctx, prompt.DescriptionSystem, prompt.Description(topic, filenames), false)
}

func (c *Client) generate(ctx context.Context, system, userPrompt string, jsonFormat bool) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"system": system,
		"prompt": userPrompt,
		"stream": false,
	}
	if jsonFormat {
		reqBody["format"] = "json"
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.http.PostJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
