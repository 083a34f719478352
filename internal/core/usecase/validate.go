package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

const (
	// DefaultReviewThreshold is the confidence below which an otherwise
	// consistent answer is demoted to needs_review.
	DefaultReviewThreshold = 70

	coverageWeight  = 60
	relevanceWeight = 40
	hedgePenalty    = 15

	// Fragments shorter than this are artifacts of splitting (stray
	// abbreviations, list bullets), not statements worth auditing.
	minSentenceRunes = 10
)

var (
	citationPattern        = regexp.MustCompile(`\[Source: ([^\]]+)\]`)
	leadingCitationPattern = regexp.MustCompile(`^(?:\[Source: [^\]]+\]\s*)+`)
)

// hedgeMarkers are phrases that signal the model is guessing. Each
// occurrence costs hedgePenalty confidence points.
var hedgeMarkers = []string{
	"i'm not sure",
	"i am not sure",
	"it is unclear",
	"it's unclear",
	"cannot determine",
	"insufficient information",
	"i don't know",
	"might be",
	"possibly",
}

// Validator audits a synthesized answer against the documents it was
// built from. It is deterministic and never calls the model: the same
// answer and documents always produce the same verdict.
type Validator struct {
	reviewThreshold int
}

func NewValidator(reviewThreshold int) *Validator {
	if reviewThreshold <= 0 {
		reviewThreshold = DefaultReviewThreshold
	}
	return &Validator{reviewThreshold: reviewThreshold}
}

func (v *Validator) Validate(answer string, docs []domain.ScoredDocument) domain.ValidationVerdict {
	known := make(map[string]float64, len(docs))
	for _, doc := range docs {
		known[doc.Source] = doc.Score
	}

	citations := extractCitations(answer)
	var invalid []string
	cited := make(map[string]struct{}, len(citations))
	for _, label := range citations {
		if _, ok := known[label]; ok {
			cited[label] = struct{}{}
			continue
		}
		invalid = append(invalid, label)
	}

	sentences := splitSentences(answer)
	coveredCount := 0
	var uncited []string
	for _, sentence := range sentences {
		if sentenceIsCovered(sentence, cited) {
			coveredCount++
			continue
		}
		uncited = append(uncited, sentence)
	}

	coverage := 0.0
	if len(sentences) > 0 {
		coverage = float64(coveredCount) / float64(len(sentences))
	}
	avgRelevance := 0.0
	if len(cited) > 0 {
		sum := 0.0
		for label := range cited {
			sum += known[label]
		}
		avgRelevance = sum / float64(len(cited))
	}

	confidence := int(math.Round(coverageWeight*coverage + relevanceWeight*avgRelevance))
	confidence -= hedgePenalty * countHedges(answer)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	verdict := domain.ValidationVerdict{Confidence: confidence}
	for _, label := range invalid {
		verdict.Flagged = append(verdict.Flagged, fmt.Sprintf("cites unknown source %q", label))
	}
	for _, sentence := range uncited {
		verdict.Flagged = append(verdict.Flagged, fmt.Sprintf("uncited statement: %q", truncateRunes(sentence, 120)))
	}

	switch {
	case len(invalid) > 0:
		verdict.Status = domain.ValidationInvalid
	case confidence < v.reviewThreshold:
		verdict.Status = domain.ValidationNeedsReview
	default:
		verdict.Status = domain.ValidationValid
	}
	return verdict
}

func extractCitations(answer string) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func sentenceIsCovered(sentence string, cited map[string]struct{}) bool {
	for _, m := range citationPattern.FindAllStringSubmatch(sentence, -1) {
		if _, ok := cited[strings.TrimSpace(m[1])]; ok {
			return true
		}
	}
	return false
}

// splitSentences cuts the answer at sentence terminators, then folds
// citation-only fragments back into the sentence they follow: models
// often place "[Source: x]" after the closing period.
func splitSentences(answer string) []string {
	var fragments []string
	var b strings.Builder
	for _, r := range answer {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			fragments = append(fragments, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		fragments = append(fragments, tail)
	}

	sentences := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		if len(sentences) > 0 {
			if leading := leadingCitationPattern.FindString(frag); leading != "" {
				sentences[len(sentences)-1] += " " + strings.TrimSpace(leading)
				frag = strings.TrimSpace(frag[len(leading):])
				if frag == "" {
					continue
				}
			}
		}
		sentences = append(sentences, frag)
	}

	out := sentences[:0]
	for _, s := range sentences {
		if len([]rune(s)) >= minSentenceRunes {
			out = append(out, s)
		}
	}
	return out
}

func countHedges(answer string) int {
	lower := strings.ToLower(answer)
	count := 0
	for _, marker := range hedgeMarkers {
		count += strings.Count(lower, marker)
	}
	return count
}
