package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikeboe/socrates/pkg/metrics"
)

// Mode selects the style of a quick answer.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeDetailed Mode = "detailed"
)

var ErrUnknownMode = errors.New("unknown answer mode")

// QuickAnswer is a single-search answer with the sources it cites.
type QuickAnswer struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
	Mode    Mode           `json:"mode"`
}

// QuickAnswerer answers a question from one search, without decomposition.
type QuickAnswerer struct {
	Search SearchProvider
	LLM    TextGenerator
}

// ParseMode maps a user-supplied mode name to a Mode; empty means simple.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSimple:
		return ModeSimple, nil
	case ModeDetailed:
		return ModeDetailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (q *QuickAnswerer) Answer(ctx context.Context, query string, mode Mode) (*QuickAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	system, budget := simpleAnswerSystemPrompt, 1024
	switch mode {
	case ModeSimple:
	case ModeDetailed:
		system, budget = detailedAnswerSystemPrompt, 4096
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	metrics.SearchCalls.Inc()
	sources, err := q.Search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	input := fmt.Sprintf("Question: %s\n\nSearch Results:\n%s\n\nPlease provide your answer:", query, numberedContext(sources))

	metrics.GeneratorCalls.WithLabelValues("quick_answer").Inc()
	answer, err := q.LLM.Generate(ctx, prompt(system, input), budget)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	return &QuickAnswer{Answer: answer, Sources: sources, Mode: mode}, nil
}
