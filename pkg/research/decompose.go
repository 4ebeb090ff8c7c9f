package research

import (
	"context"
	"log/slog"

	"github.com/mikeboe/socrates/pkg/metrics"
)

// Decomposer splits a query into sub-questions.
type Decomposer struct {
	LLM    TextGenerator
	Logger *slog.Logger
}

// Decompose asks the generator for 3-5 sub-questions. Unusable output yields
// the original query as the only sub-question; only transport errors are
// returned.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	metrics.GeneratorCalls.WithLabelValues("decomposer").Inc()
	text, err := d.LLM.Generate(ctx, prompt(decomposeSystemPrompt, query), decomposeTokens)
	if err != nil {
		return nil, err
	}

	questions, err := parseStringArray(text)
	if err != nil || len(questions) == 0 {
		loggerOr(d.Logger).Warn("Decomposition unusable, researching query as-is", "error", err)
		metrics.ParseFallbacks.WithLabelValues("decomposer").Inc()
		return []string{query}, nil
	}
	return questions, nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
