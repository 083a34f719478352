package memory

import (
	"context"
	"testing"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

func doc(id, source, content string) *domain.Document {
	return &domain.Document{ID: id, Source: source, Content: content}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	if err := store.IndexDocument(ctx, doc("doc-a", "a.txt", "alpha"), []float32{1, 0}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if err := store.IndexDocument(ctx, doc("doc-b", "b.txt", "beta"), []float32{0.6, 0.8}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].DocumentID != "doc-a" {
		t.Fatalf("first hit = %s, want doc-a", hits[0].DocumentID)
	}
	if hits[0].Score < 0.999 {
		t.Fatalf("identical vector score = %v, want ~1.0", hits[0].Score)
	}
	if hits[1].Score < 0.59 || hits[1].Score > 0.61 {
		t.Fatalf("doc-b score = %v, want ~0.6", hits[1].Score)
	}
	if hits[1].Source != "b.txt" || hits[1].Text != "beta" {
		t.Fatalf("unexpected hit payload: %+v", hits[1])
	}
}

func TestSearchFiltersBelowMinScore(t *testing.T) {
	store := New(0.7)
	ctx := context.Background()

	if err := store.IndexDocument(ctx, doc("doc-a", "a.txt", "alpha"), []float32{1, 0}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if err := store.IndexDocument(ctx, doc("doc-b", "b.txt", "beta"), []float32{0.6, 0.8}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "doc-a" {
		t.Fatalf("expected only doc-a above threshold, got %+v", hits)
	}
}

func TestReindexOverwritesVector(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	if err := store.IndexDocument(ctx, doc("doc-a", "a.txt", "old"), []float32{1, 0}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if err := store.IndexDocument(ctx, doc("doc-a", "a.txt", "new"), []float32{0, 1}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if store.Size() != 1 {
		t.Fatalf("size = %d, want 1 after re-index", store.Size())
	}

	hits, err := store.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Text != "new" || hits[0].Score < 0.999 {
		t.Fatalf("expected overwritten vector to match, got %+v", hits)
	}
}

func TestSearchEmptyStoreReturnsNothing(t *testing.T) {
	store := New(0)
	hits, err := store.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %d, want 0", len(hits))
	}
}

func TestSearchTieBreaksByDocumentID(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	if err := store.IndexDocument(ctx, doc("doc-b", "b.txt", "beta"), []float32{1, 0}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if err := store.IndexDocument(ctx, doc("doc-a", "a.txt", "alpha"), []float32{1, 0}); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}

	hits, err := store.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].DocumentID != "doc-a" || hits[1].DocumentID != "doc-b" {
		t.Fatalf("expected deterministic ID ordering on ties, got %+v", hits)
	}
}

func TestIndexDocumentRejectsEmptyVector(t *testing.T) {
	store := New(0)
	if err := store.IndexDocument(context.Background(), doc("doc-a", "a.txt", "alpha"), nil); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}
