package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one knowledge-base entry. Content holds the extracted plain
// text; it is persisted for index rebuilds but never returned by the API.
type Document struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Content     string         `json:"-"`
	WordCount   int            `json:"word_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SearchHit is a raw match from a single index (semantic or lexical),
// scored in that index's own scale.
type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Provenance records which index (or both) produced a fused result.
type Provenance string

const (
	ProvenanceSemantic Provenance = "semantic"
	ProvenanceLexical  Provenance = "lexical"
	ProvenanceBoth     Provenance = "both"
)

// ScoredDocument is a fused retrieval result. Score is normalized to [0,1]
// relative to the best match of the same run.
type ScoredDocument struct {
	DocumentID string     `json:"document_id"`
	Source     string     `json:"source"`
	Text       string     `json:"-"`
	Score      float64    `json:"relevance"`
	Provenance Provenance `json:"provenance"`
}
