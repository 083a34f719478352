package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-agents/internal/config"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/core/usecase"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/index/lexical"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/llm/openai"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/vector/memory"
	"github.com/kirillkom/knowledge-agents/internal/infrastructure/vector/qdrant"
)

// App wires configuration into the running object graph shared by the
// API and worker binaries.
type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository
	Runs  ports.QueryRunStore

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService
	CorpusUC  ports.CorpusIndexer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	runs := postgres.NewRunLogRepository(db)
	if err := runs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure query runs schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		IngestSubject:      cfg.NATSIngestSubject,
		CorpusSubject:      cfg.NATSCorpusSubject,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	generator, embedder, err := newLLMProvider(cfg)
	if err != nil {
		return nil, err
	}
	vectors, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	lexicalIndex := lexical.NewStore(lexical.Params{})

	reformulator := usecase.NewReformulator(generator)
	retriever := usecase.NewHybridRetriever(embedder, vectors, lexicalIndex, usecase.RetrievalConfig{
		RRFRankConstant: cfg.RRFRankConstant,
	})
	synthesizer := usecase.NewSynthesizer(generator)
	validator := usecase.NewValidator(cfg.ValidationReviewThreshold)

	queryUC := usecase.NewOrchestrator(
		reformulator,
		retriever,
		synthesizer,
		validator,
		runs,
		cfg.TopK,
		usecase.PipelineTimeouts{
			Reformulate: time.Duration(cfg.ReformulateTimeoutSeconds) * time.Second,
			Retrieve:    time.Duration(cfg.RetrieveTimeoutSeconds) * time.Second,
			Synthesize:  time.Duration(cfg.SynthesizeTimeoutSeconds) * time.Second,
		},
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extractor.NewExtractor(storage), embedder, vectors, queue)
	corpusUC := usecase.NewRebuildCorpusUseCase(repo, lexicalIndex)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Runs:   runs,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		CorpusUC:  corpusUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// newLLMProvider builds the generation and embedding adapters for the
// configured provider. Both share one resilience policy; the breaker
// toggle comes from configuration so local setups can turn it off.
func newLLMProvider(cfg config.Config) (ports.TextGenerator, ports.Embedder, error) {
	llmResilience := resilience.DefaultConfig()
	llmResilience.BreakerEnabled = cfg.LLMBreakerEnabled

	switch strings.ToLower(cfg.LLMProvider) {
	case "", "ollama":
		client := ollama.NewWithResilience(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, llmResilience)
		return ollama.NewGenerator(client), ollama.NewEmbedder(client), nil
	case "openai":
		client, err := openai.New(openai.Options{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			EmbedModel: cfg.OpenAIEmbedModel,
			Resilience: llmResilience,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init openai client: %w", err)
		}
		return openai.NewGenerator(client), openai.NewEmbedder(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func newVectorStore(cfg config.Config) (ports.VectorStore, error) {
	switch strings.ToLower(cfg.VectorBackend) {
	case "", "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.SemanticMinScore), nil
	case "memory":
		return memory.New(cfg.SemanticMinScore), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
