package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	queue     ports.MessageQueue
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		embedder:  embedder,
		vectorDB:  vectorDB,
		queue:     queue,
	}
}

// ProcessByID runs the ingestion pipeline for one uploaded document:
// extract text, persist it, embed the whole document and index the
// vector. Documents are indexed whole; ranking operates on documents,
// not fragments. On success the corpus-updated event tells API replicas
// to rebuild their lexical index.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	if err := uc.queue.PublishCorpusUpdated(ctx, documentID); err != nil {
		return fmt.Errorf("publish corpus update: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return err
	}
	doc.Content = text
	doc.WordCount = len(strings.Fields(text))

	if err := uc.repo.SaveContent(ctx, doc.ID, doc.Content, doc.WordCount); err != nil {
		return fmt.Errorf("save extracted content: %w", err)
	}

	vector, err := uc.embedDocument(ctx, text)
	if err != nil {
		return err
	}

	if err := uc.vectorDB.IndexDocument(ctx, doc, vector); err != nil {
		return fmt.Errorf("index document in vector db: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) embedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed document",
			fmt.Errorf("expected 1 vector, got %d", len(vectors)),
		)
	}
	return vectors[0], nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
