package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
)

// Client wraps an OpenAI-compatible chat and embedding API behind the
// generation and embedding ports. A custom base URL points it at any
// compatible gateway.
type Client struct {
	model    llms.Model
	embedder embeddings.Embedder
	executor *resilience.Executor
}

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Resilience resilience.Config
}

func New(opts Options) (*Client, error) {
	if opts.Resilience == (resilience.Config{}) {
		opts.Resilience = resilience.DefaultConfig()
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithModel(opts.Model),
		openai.WithEmbeddingModel(opts.EmbedModel),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &Client{
		model:    client,
		embedder: embedder,
		executor: resilience.NewExecutor(opts.Resilience),
	}, nil
}

// Generator adapts chat completions to the text-generation port. The
// full prompt travels as a single user message; stage instructions are
// already baked into it.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}
	var callOpts []llms.CallOption
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	var answer string
	err := g.client.executor.Execute(ctx, "openai.generate", func(ctx context.Context) error {
		response, err := g.client.model.GenerateContent(ctx, content, callOpts...)
		if err != nil {
			return err
		}
		if len(response.Choices) == 0 {
			return fmt.Errorf("empty completion result")
		}
		answer = strings.TrimSpace(response.Choices[0].Content)
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapUnavailable("generate", err)
	}
	return answer, nil
}

// Embedder adapts the embeddings endpoint to the embedding port.
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

	var vectors [][]float32
	err := e.client.executor.Execute(ctx, "openai.embed", func(ctx context.Context) error {
		out, err := e.client.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		vectors = out
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapUnavailable("embed", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.client.executor.Execute(ctx, "openai.embed", func(ctx context.Context) error {
		out, err := e.client.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vector = out
		return nil
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapUnavailable("embed", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vector, nil
}
