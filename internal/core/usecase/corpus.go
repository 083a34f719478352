package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

// RebuildCorpusUseCase refreshes the in-process lexical index from the
// set of ready documents. It runs at API startup and on every
// corpus-updated event.
type RebuildCorpusUseCase struct {
	repo  ports.DocumentRepository
	index ports.LexicalIndex
}

func NewRebuildCorpusUseCase(repo ports.DocumentRepository, index ports.LexicalIndex) *RebuildCorpusUseCase {
	return &RebuildCorpusUseCase{repo: repo, index: index}
}

func (uc *RebuildCorpusUseCase) Rebuild(ctx context.Context) error {
	docs, err := uc.repo.ListReady(ctx)
	if err != nil {
		return fmt.Errorf("list ready documents: %w", err)
	}
	uc.index.Rebuild(docs)
	return nil
}
