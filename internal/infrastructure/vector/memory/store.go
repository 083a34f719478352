// Package memory provides a brute-force in-memory vector store for
// local development and tests when no Qdrant instance is running.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

type entry struct {
	source string
	text   string
	vector []float32
}

// Store keeps one vector per document ID, so re-indexing a document
// overwrites its previous vector.
type Store struct {
	minScore float64

	mu      sync.RWMutex
	entries map[string]entry
}

func New(minScore float64) *Store {
	return &Store{
		minScore: minScore,
		entries:  make(map[string]entry),
	}
}

func (s *Store) IndexDocument(_ context.Context, doc *domain.Document, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty document vector")
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[doc.ID] = entry{source: doc.Source, text: doc.Content, vector: vec}
	return nil
}

func (s *Store) Search(_ context.Context, queryVector []float32, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]domain.SearchHit, 0, len(s.entries))
	for id, e := range s.entries {
		score := cosineSimilarity(queryVector, e.vector)
		if score < s.minScore {
			continue
		}
		hits = append(hits, domain.SearchHit{
			DocumentID: id,
			Source:     e.source,
			Text:       e.text,
			Score:      score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
