package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance over its HTTP API. Generation
// and embedding calls share one executor, so retry budgets and breaker
// state are tracked per operation.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithResilience(baseURL, genModel, embedModel, resilience.DefaultConfig())
}

func NewWithResilience(baseURL, genModel, embedModel string, cfg resilience.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   resilience.NewExecutor(cfg),
	}
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
	return wrapUnavailable(operation, err)
}

// Generator adapts the generate endpoint to the text-generation port.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		reqBody["options"] = options
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Embedder adapts the embed endpoint to the embedding port.
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
	if err := e.client.call(ctx, "embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
