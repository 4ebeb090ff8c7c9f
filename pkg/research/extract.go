package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/socrates/pkg/metrics"
)

// FindingExtractor turns search results into cited key points.
type FindingExtractor struct {
	LLM    TextGenerator
	Logger *slog.Logger
}

// Extract returns key points for subQuestion citing sources by 1-based index.
// No sources means no generator call and no key points. If the output is not
// a JSON array the raw text is kept as a single key point.
func (x *FindingExtractor) Extract(ctx context.Context, subQuestion string, sources []SearchResult) ([]string, error) {
	if len(sources) == 0 {
		return []string{}, nil
	}

	input := fmt.Sprintf("Question: %s\n\nSearch Results:\n%s", subQuestion, numberedContext(sources))

	metrics.GeneratorCalls.WithLabelValues("extractor").Inc()
	text, err := x.LLM.Generate(ctx, prompt(extractSystemPrompt, input), extractTokens)
	if err != nil {
		return nil, err
	}

	points, err := parseStringArray(text)
	if err != nil {
		loggerOr(x.Logger).Warn("Key point output not a JSON array, keeping raw text",
			"sub_question", subQuestion, "error", err)
		metrics.ParseFallbacks.WithLabelValues("extractor").Inc()
		return []string{text}, nil
	}
	return points, nil
}

// numberedContext renders sources as "[i] Title: Snippet" blocks.
func numberedContext(sources []SearchResult) string {
	blocks := make([]string, len(sources))
	for i, s := range sources {
		blocks[i] = fmt.Sprintf("[%d] %s: %s", i+1, s.Title, s.Snippet)
	}
	return strings.Join(blocks, "\n\n")
}
