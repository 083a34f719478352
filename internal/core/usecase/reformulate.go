package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

const (
	reformulateTemperature = 0.3
	reformulateMaxTokens   = 200
)

const reformulatePromptTemplate = `You are a query reformulation expert. Your task is to take vague or ambiguous user queries and reformulate them into precise, specific search queries that will retrieve the most relevant information.

Guidelines:
1. Expand acronyms (e.g., "API" -> "Application Programming Interface")
2. Add context when needed
3. Break down complex multi-part questions into clear components
4. Make implicit requirements explicit
5. Keep the reformulated query concise but comprehensive

Examples:
- Vague: "How do I make an API?"
  Reformulated: "How do I create a REST API endpoint using FastAPI?"

- Vague: "What about leave?"
  Reformulated: "What is the employee leave policy and how do I request leave?"

- Vague: "Remote work stuff"
  Reformulated: "What are the remote work policies and guidelines?"

Return ONLY the reformulated query, nothing else.

User query: %s`

// Reformulator rewrites a raw user query into a precise search query. It
// absorbs generation failures: the pipeline must keep going with the
// original query when the model is down or returns garbage.
type Reformulator struct {
	generator ports.TextGenerator
}

func NewReformulator(generator ports.TextGenerator) *Reformulator {
	return &Reformulator{generator: generator}
}

// Reformulate returns the rewritten query and true, or the original query
// and false when the fallback path was taken.
func (r *Reformulator) Reformulate(ctx context.Context, query string) (string, bool) {
	prompt := fmt.Sprintf(reformulatePromptTemplate, query)
	raw, err := r.generator.Generate(ctx, prompt, ports.GenerationOptions{
		Temperature: reformulateTemperature,
		MaxTokens:   reformulateMaxTokens,
	})
	if err != nil {
		slog.Warn("query_reformulation_fallback", "error", err)
		return query, false
	}

	reformulated := cleanReformulation(raw)
	if reformulated == "" {
		slog.Warn("query_reformulation_fallback", "error", "empty model output")
		return query, false
	}
	return reformulated, true
}

// cleanReformulation collapses the model output to a single line and
// strips decorative quoting.
func cleanReformulation(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
