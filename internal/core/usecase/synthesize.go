package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

// NoContextAnswer is returned verbatim when retrieval found nothing. The
// model is not called in that case; there is nothing to ground an answer
// in.
const NoContextAnswer = "I could not find relevant information in the knowledge base to answer this question."

const (
	synthesizeTemperature = 0.2
	synthesizeMaxTokens   = 400
	maxExcerptRunes       = 400
)

const synthesisPromptHeader = `You are an expert at synthesizing information CONCISELY.

INSTRUCTIONS:
1. Answer in 2-3 sentences maximum
2. Skip lengthy explanations and get straight to the point
3. Use ONLY the documents below; do not invent facts
4. Cite every claim inline as [Source: filename]

DOCUMENTS:
`

// Synthesizer turns retrieved documents into a short cited answer.
type Synthesizer struct {
	generator ports.TextGenerator
}

func NewSynthesizer(generator ports.TextGenerator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, docs []domain.ScoredDocument) (string, error) {
	if len(docs) == 0 {
		return NoContextAnswer, nil
	}

	answer, err := s.generator.Generate(ctx, buildSynthesisPrompt(query, docs), ports.GenerationOptions{
		Temperature: synthesizeTemperature,
		MaxTokens:   synthesizeMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func buildSynthesisPrompt(query string, docs []domain.ScoredDocument) string {
	var b strings.Builder
	b.WriteString(synthesisPromptHeader)
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n[Document %d] Source: %s\n%s\n", i+1, doc.Source, truncateRunes(doc.Text, maxExcerptRunes))
	}
	fmt.Fprintf(&b, "\nQUESTION: %s\n\nANSWER (CONCISE, 2-3 sentences max):", query)
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
