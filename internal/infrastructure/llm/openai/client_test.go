package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/core/ports"
)

func TestEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/v1", APIKey: "key", EmbedModel: "emb"}, nil)
	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
}

func TestSummarizerUsesJSONMode(t *testing.T) {
	var req chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"canonical_title\":\"Invoice\",\"keywords\":[],\"domain\":\"Finance\",\"embedding_text\":\"invoice march\"}"}}]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, ChatModel: "chat"}, nil)
	record, err := NewSummarizer(client).Summarize(context.Background(), ports.SummarizeRequest{Filename: "inv.pdf"})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if record.CanonicalTitle != "Invoice" || record.EmbeddingText != "invoice march" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if req.ResponseFormat["type"] != "json_object" || req.Model != "chat" || len(req.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestChatWithoutChoicesIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	_, err := NewGenerator(client).GenerateDescription(context.Background(), "Taxes", []string{"a.pdf"})
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}
