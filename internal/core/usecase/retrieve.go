package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

const (
	defaultCandidateMultiplier = 3
	defaultRRFRankConstant     = 60
)

// RetrievalConfig tunes hybrid retrieval. CandidateMultiplier widens the
// per-index candidate pool relative to the requested top-k; RRFRankConstant
// is the k of reciprocal-rank fusion.
type RetrievalConfig struct {
	CandidateMultiplier int
	RRFRankConstant     int
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = defaultCandidateMultiplier
	}
	if c.RRFRankConstant <= 0 {
		c.RRFRankConstant = defaultRRFRankConstant
	}
	return c
}

// HybridRetriever queries the semantic and lexical indexes in turn and
// fuses both rankings by reciprocal rank.
type HybridRetriever struct {
	embedder ports.Embedder
	vectors  ports.VectorStore
	lexical  ports.LexicalIndex
	cfg      RetrievalConfig
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	lexical ports.LexicalIndex,
	cfg RetrievalConfig,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		cfg:      cfg.withDefaults(),
	}
}

// Retrieve returns up to topK fused documents for the query, scored in
// [0,1] relative to the best match. An empty result is not an error; the
// synthesis stage decides what an empty context means.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredDocument, error) {
	pool := topK * r.cfg.CandidateMultiplier

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	semantic, err := r.vectors.Search(ctx, queryVector, pool)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	lexical := r.lexical.Search(query, pool)

	fused := fuseRRF(semantic, lexical, r.cfg.RRFRankConstant)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	normalizeScores(fused)
	return fused, nil
}

type fusedCandidate struct {
	doc   domain.ScoredDocument
	score float64
}

// fuseRRF merges the two rankings with reciprocal-rank fusion: each list
// contributes 1/(rankConstant + rank) per document, ranks starting at 1.
// Documents found by both indexes keep provenance "both". Ordering is
// fused score descending, document ID ascending on ties.
func fuseRRF(semantic, lexical []domain.SearchHit, rankConstant int) []domain.ScoredDocument {
	acc := make(map[string]*fusedCandidate, len(semantic)+len(lexical))

	addList := func(hits []domain.SearchHit, origin domain.Provenance) {
		for rank, hit := range hits {
			cand, ok := acc[hit.DocumentID]
			if !ok {
				cand = &fusedCandidate{doc: domain.ScoredDocument{
					DocumentID: hit.DocumentID,
					Source:     hit.Source,
					Text:       hit.Text,
					Provenance: origin,
				}}
				acc[hit.DocumentID] = cand
			} else {
				if cand.doc.Source == "" {
					cand.doc.Source = hit.Source
				}
				if cand.doc.Text == "" {
					cand.doc.Text = hit.Text
				}
				if cand.doc.Provenance != origin {
					cand.doc.Provenance = domain.ProvenanceBoth
				}
			}
			cand.score += 1.0 / float64(rankConstant+rank+1)
		}
	}

	addList(semantic, domain.ProvenanceSemantic)
	addList(lexical, domain.ProvenanceLexical)

	out := make([]domain.ScoredDocument, 0, len(acc))
	for _, cand := range acc {
		doc := cand.doc
		doc.Score = cand.score
		out = append(out, doc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

// normalizeScores rescales fused scores so the best document reads 1.0.
// Raw RRF sums depend on pool sizes and mean little on their own.
func normalizeScores(docs []domain.ScoredDocument) {
	if len(docs) == 0 {
		return
	}
	max := docs[0].Score
	if max <= 0 {
		return
	}
	for i := range docs {
		docs[i].Score /= max
	}
}
