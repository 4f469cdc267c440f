// Package openai talks to OpenAI-compatible chat completion and embedding
// endpoints.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/document-sorter/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/document-sorter/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL     string
	APIKey      string
	ChatModel   string
	EmbedModel  string
	Temperature float64
	Timeout     time.Duration
}

type Client struct {
	http *llmhttp.Client
	cfg  Config
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	opts := []llmhttp.Option{llmhttp.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, llmhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &Client{
		http: llmhttp.New("openai", cfg.BaseURL, executor, opts...),
		cfg:  cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	req := chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}
	if jsonMode {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, "/chat/completions", req, &resp, "chat"); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrMalformedResponse, "openai chat", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, req ports.SummarizeRequest) (domain.NormalizedRecord, error) {
	content, err := s.client.chat(ctx, prompt.SummarySystem, prompt.Summary(req), true)
	if err != nil {
		return domain.NormalizedRecord{}, err
	}
	return prompt.ParseRecord(content)
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateGroupName(ctx context.Context, titles []string) (string, error) {
	content, err := g.client.chat(ctx, prompt.GroupNameSystem, prompt.GroupName(titles), false)
	if err != nil {
		return "", err
	}
	return prompt.CleanName(content), nil
}

func (g *Generator) GenerateDescription(ctx context.Context, topic string, filenames []string) (string, error) {
	return g.client.chat(ctx, prompt.DescriptionSystem, prompt.Description(topic, filenames), false)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends one request per call; the response is reordered by index.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := map[string]any{
		"model": e.client.cfg.EmbedModel,
		"input": texts,
	}

	var resp embeddingResponse
	if err := e.client.http.PostJSON(ctx, "/embeddings", req, &resp, "embed"); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrMalformedResponse,
			"openai embed",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(resp.Data), len(texts)),
		)
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		out[i] = item.Embedding
	}
	return out, nil
}
