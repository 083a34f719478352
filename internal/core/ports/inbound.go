package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

// QueryService is the inbound contract for running the answer pipeline.
type QueryService interface {
	HandleQuery(ctx context.Context, query string, topK int) (*domain.QueryResult, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// CorpusIndexer rebuilds the in-process lexical index from ready documents.
type CorpusIndexer interface {
	Rebuild(ctx context.Context) error
}
