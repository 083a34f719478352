package lexical

import (
	"strings"
	"unicode"
)

// stopwords are never indexed and never scored. The set is fixed so that
// scores stay reproducible across deployments.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "can": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// tokenize lowercases and splits on any non-alphanumeric rune, then drops
// stopwords. Unicode letters outside a-z are treated as separators, which
// keeps tokenization byte-order independent and cheap.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		if _, skip := stopwords[token]; !skip {
			out = append(out, token)
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

func termCounts(tokens []string) map[string]int {
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
