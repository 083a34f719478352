package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveContent(ctx context.Context, id string, content string, wordCount int) error
	ListReady(ctx context.Context) ([]domain.Document, error)
}

// QueryRunStore persists the per-run audit log and serves aggregates.
type QueryRunStore interface {
	Record(ctx context.Context, rec domain.RunRecord) error
	Stats(ctx context.Context) (domain.RunStats, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion and corpus-change events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCorpusUpdated(ctx context.Context, documentID string) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// GenerationOptions tune a single text generation call.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// TextGenerator produces free-form text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// Embedder builds vectors for document and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes documents and performs semantic search.
type VectorStore interface {
	IndexDocument(ctx context.Context, doc *domain.Document, vector []float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SearchHit, error)
}

// LexicalIndex serves keyword search over the ready corpus and is rebuilt
// in place when the corpus changes.
type LexicalIndex interface {
	Search(query string, limit int) []domain.SearchHit
	Rebuild(docs []domain.Document)
}
