package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/socrates/pkg/metrics"
)

// CompletenessEvaluator decides whether the findings answer the query.
type CompletenessEvaluator struct {
	LLM    TextGenerator
	Logger *slog.Logger
}

// Evaluate returns the generator's verdict. Output that does not parse counts
// as complete so a confused evaluator ends the loop.
func (e *CompletenessEvaluator) Evaluate(ctx context.Context, query string, findings []Finding) (Verdict, error) {
	summaries := make([]string, len(findings))
	for i, f := range findings {
		summaries[i] = fmt.Sprintf("Sub-question: %s\nKey points: %s", f.SubQuestion, strings.Join(f.KeyPoints, "; "))
	}
	input := fmt.Sprintf("Original Question: %s\n\nFindings:\n%s", query, strings.Join(summaries, "\n\n"))

	metrics.GeneratorCalls.WithLabelValues("evaluator").Inc()
	text, err := e.LLM.Generate(ctx, prompt(evaluateSystemPrompt, input), evaluateTokens)
	if err != nil {
		return Verdict{}, err
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		loggerOr(e.Logger).Warn("Evaluator output unparseable, treating research as complete", "error", err)
		metrics.ParseFallbacks.WithLabelValues("evaluator").Inc()
		return Verdict{Complete: true, Gaps: []string{}}, nil
	}
	return verdict, nil
}
