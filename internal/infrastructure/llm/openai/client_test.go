package openai

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
)

type modelFake struct {
	response *llms.ContentResponse
	err      error

	calls        int
	lastMessages []llms.MessageContent
	lastOptions  []llms.CallOption
}

func (m *modelFake) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.lastMessages = messages
	m.lastOptions = options
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *modelFake) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

type embedderFake struct {
	vectors [][]float32
	query   []float32
	err     error
}

func (e *embedderFake) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors, nil
}

func (e *embedderFake) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.query, nil
}

func testClient(model *modelFake, embedder *embedderFake) *Client {
	return &Client{
		model:    model,
		embedder: embedder,
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     2 * time.Millisecond,
			RetryMultiplier:     2.0,
		}),
	}
}

func TestGenerateSendsPromptAsUserMessage(t *testing.T) {
	model := &modelFake{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "  the answer \n"}},
	}}
	gen := NewGenerator(testClient(model, &embedderFake{}))

	answer, err := gen.Generate(context.Background(), "why is the sky blue?", ports.GenerationOptions{Temperature: 0.2, MaxTokens: 400})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("Generate() = %q, want trimmed choice content", answer)
	}
	if len(model.lastMessages) != 1 {
		t.Fatalf("messages = %d, want 1", len(model.lastMessages))
	}
	msg := model.lastMessages[0]
	if msg.Role != llms.ChatMessageTypeHuman {
		t.Fatalf("role = %v, want human", msg.Role)
	}
	text, ok := msg.Parts[0].(llms.TextContent)
	if !ok || text.Text != "why is the sky blue?" {
		t.Fatalf("unexpected message part: %#v", msg.Parts[0])
	}

	var applied llms.CallOptions
	for _, opt := range model.lastOptions {
		opt(&applied)
	}
	if applied.Temperature != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", applied.Temperature)
	}
	if applied.MaxTokens != 400 {
		t.Fatalf("max tokens = %d, want 400", applied.MaxTokens)
	}
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	model := &modelFake{response: &llms.ContentResponse{}}
	gen := NewGenerator(testClient(model, &embedderFake{}))

	if _, err := gen.Generate(context.Background(), "q", ports.GenerationOptions{}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestGenerateAPIErrorIsNotUnavailable(t *testing.T) {
	model := &modelFake{err: errors.New("API returned unexpected status code: 401")}
	gen := NewGenerator(testClient(model, &embedderFake{}))

	_, err := gen.Generate(context.Background(), "q", ports.GenerationOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("API rejection should not be classified as unavailability: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry for API rejections)", model.calls)
	}
}

func TestGenerateNetworkErrorRetriesAndWrapsUnavailable(t *testing.T) {
	model := &modelFake{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	gen := NewGenerator(testClient(model, &embedderFake{}))

	_, err := gen.Generate(context.Background(), "q", ports.GenerationOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected llm unavailable kind, got %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("calls = %d, want 2 (retry on network error)", model.calls)
	}
}

func TestEmbedDelegatesToEmbedder(t *testing.T) {
	embedder := NewEmbedder(testClient(&modelFake{}, &embedderFake{
		vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
	}))

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("vectors = %d, want 2", len(vectors))
	}
}

func TestEmbedQueryReturnsVector(t *testing.T) {
	embedder := NewEmbedder(testClient(&modelFake{}, &embedderFake{
		query: []float32{0.5, 0.6, 0.7},
	}))

	vector, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vector))
	}
}

func TestEmbedQueryRejectsEmptyVector(t *testing.T) {
	embedder := NewEmbedder(testClient(&modelFake{}, &embedderFake{}))

	if _, err := embedder.EmbedQuery(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for empty embedding result")
	}
}
