package lexical

import (
	"math"
	"sort"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

// BM25 constants. K1 bounds term-frequency saturation, B sets how strongly
// document length discounts the score.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type Params struct {
	K1 float64
	B  float64
}

func (p Params) withDefaults() Params {
	if p.K1 <= 0 {
		p.K1 = DefaultK1
	}
	if p.B < 0 || p.B > 1 {
		p.B = DefaultB
	}
	return p
}

type indexedDoc struct {
	id     string
	source string
	text   string
	terms  map[string]int
	length int
}

// Index is an immutable BM25 index over one corpus snapshot. Build a new
// one and swap it in when the corpus changes.
type Index struct {
	params  Params
	docs    []indexedDoc
	docFreq map[string]int
	avgLen  float64
}

// Build indexes the given documents. Documents with no indexable tokens
// are kept with zero length; they can never score above zero.
func Build(docs []domain.Document, params Params) *Index {
	ix := &Index{
		params:  params.withDefaults(),
		docs:    make([]indexedDoc, 0, len(docs)),
		docFreq: make(map[string]int),
	}

	totalLen := 0
	for _, doc := range docs {
		terms := termCounts(tokenize(doc.Content))
		length := 0
		for term, count := range terms {
			ix.docFreq[term]++
			length += count
		}
		totalLen += length
		ix.docs = append(ix.docs, indexedDoc{
			id:     doc.ID,
			source: doc.Source,
			text:   doc.Content,
			terms:  terms,
			length: length,
		})
	}
	// Deterministic scan order keeps equal-score ties stable.
	sort.Slice(ix.docs, func(i, j int) bool { return ix.docs[i].id < ix.docs[j].id })
	if len(ix.docs) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(ix.docs))
	}
	return ix
}

// Size reports how many documents the snapshot covers.
func (ix *Index) Size() int {
	return len(ix.docs)
}

// Search scores every document against the query and returns up to limit
// hits ordered by score descending, document ID ascending on ties.
// Documents scoring zero are excluded; query terms unknown to the corpus
// contribute nothing.
func (ix *Index) Search(query string, limit int) []domain.SearchHit {
	if limit <= 0 || len(ix.docs) == 0 {
		return nil
	}
	queryTerms := termCounts(tokenize(query))
	if len(queryTerms) == 0 {
		return nil
	}

	hits := make([]domain.SearchHit, 0, limit)
	for i := range ix.docs {
		doc := &ix.docs[i]
		score := ix.score(doc, queryTerms)
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.SearchHit{
			DocumentID: doc.id,
			Source:     doc.source,
			Text:       doc.text,
			Score:      score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (ix *Index) score(doc *indexedDoc, queryTerms map[string]int) float64 {
	if doc.length == 0 {
		return 0
	}
	norm := ix.params.K1 * (1 - ix.params.B + ix.params.B*float64(doc.length)/ix.avgLen)
	score := 0.0
	for term := range queryTerms {
		tf := float64(doc.terms[term])
		if tf == 0 {
			continue
		}
		score += ix.idf(term) * (tf * (ix.params.K1 + 1)) / (tf + norm)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// idf follows the standard BM25 form; +1 inside the log keeps it positive
// even for terms present in most documents.
func (ix *Index) idf(term string) float64 {
	df := float64(ix.docFreq[term])
	if df == 0 {
		return 0
	}
	n := float64(len(ix.docs))
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}
