package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

func TestSummarizerRequestsJSONFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"canonical_title\":\"Trip\",\"keywords\":[\"rome\"],\"domain\":\"Travel\",\"embedding_text\":\"trip to rome\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", 0, nil)
	record, err := NewSummarizer(client).Summarize(context.Background(), ports.SummarizeRequest{Filename: "rome.txt", Text: "itinerary"})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if record.EmbeddingText != "trip to rome" || record.Domain != "Travel" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if payload["format"] != "json" || payload["model"] != "gen" {
		t.Fatalf("unexpected request payload: %v", payload)
	}
	if prompt, _ := payload["prompt"].(string); !strings.Contains(prompt, "rome.txt") {
		t.Fatalf("prompt misses filename: %s", prompt)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", 0, nil)
	_, err := NewEmbedder(client).Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRejectsShortResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", 0, nil)
	_, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGeneratorCleansGroupName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"  \"Travel Plans\"  "}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", 0, nil)
	name, err := NewGenerator(client).GenerateGroupName(context.Background(), []string{"rome trip", "paris trip"})
	if err != nil {
		t.Fatalf("GenerateGroupName() error = %v", err)
	}
	if name != "Travel Plans" {
		t.Fatalf("unexpected name: %q", name)
	}
}
