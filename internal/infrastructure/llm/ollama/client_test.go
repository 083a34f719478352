package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
)

func fastResilience(attempts int) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
	}
}

func TestGeneratorSendsPromptAndOptions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  the answer \n"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen-model", "embed-model"))
	answer, err := gen.Generate(context.Background(), "why is the sky blue?", ports.GenerationOptions{Temperature: 0.2, MaxTokens: 400})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("Generate() = %q, want trimmed response", answer)
	}
	if captured["model"] != "gen-model" {
		t.Fatalf("model = %v, want gen-model", captured["model"])
	}
	if captured["prompt"] != "why is the sky blue?" {
		t.Fatalf("unexpected prompt: %v", captured["prompt"])
	}
	options, ok := captured["options"].(map[string]any)
	if !ok {
		t.Fatalf("expected options in payload, got %v", captured)
	}
	if options["temperature"] != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", options["temperature"])
	}
	if options["num_predict"] != float64(400) {
		t.Fatalf("num_predict = %v, want 400", options["num_predict"])
	}
}

func TestGeneratorOmitsEmptyOptions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen-model", "embed-model"))
	if _, err := gen.Generate(context.Background(), "q", ports.GenerationOptions{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := captured["options"]; ok {
		t.Fatalf("expected no options in payload, got %v", captured["options"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewWithResilience(server.URL, "gen", "embed", fastResilience(1))
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected llm unavailable kind, got %v", err)
	}
}

func TestGenerateBadRequestIsNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid model name", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewWithResilience(server.URL, "gen", "embed", fastResilience(1))
	gen := NewGenerator(client)
	_, err := gen.Generate(context.Background(), "q", ports.GenerationOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("bad request should not be classified as unavailability: %v", err)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewWithResilience(server.URL, "gen", "embed", fastResilience(3))
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected llm unavailable kind, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	vector, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vector))
	}
}

func TestEmbedQueryRejectsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	if _, err := embedder.EmbedQuery(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for empty embedding result")
	}
}
