package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mikeboe/socrates/pkg/metrics"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// ReportSynthesizer writes the final cited markdown report.
type ReportSynthesizer struct {
	LLM    TextGenerator
	Logger *slog.Logger
}

// Synthesize issues one generator call over every finding and returns the
// generated report unchanged.
func (s *ReportSynthesizer) Synthesize(ctx context.Context, query string, findings []Finding) (string, error) {
	findingsContext, sources := SynthesisContext(findings)

	sourceLines := make([]string, len(sources))
	for i, src := range sources {
		sourceLines[i] = fmt.Sprintf("[%d] %s - %s", i+1, src.Title, src.URL)
	}

	input := fmt.Sprintf("Question: %s\n\nResearch Findings:\n%s\n\nSources:\n%s",
		query, findingsContext, strings.Join(sourceLines, "\n"))

	loggerOr(s.Logger).Info("Compiling final report", "findings", len(findings), "sources", len(sources))
	metrics.GeneratorCalls.WithLabelValues("synthesizer").Inc()
	return s.LLM.Generate(ctx, prompt(synthesizeSystemPrompt, input), synthesizeTokens)
}

// SynthesisContext renders findings as markdown sections with citations
// rewritten to global source numbers, and returns the global source list in
// the same order the numbers refer to.
func SynthesisContext(findings []Finding) (string, []SearchResult) {
	var sources []SearchResult
	sections := make([]string, len(findings))

	for i, f := range findings {
		offset := len(sources)
		sources = append(sources, f.Sources...)

		lines := make([]string, len(f.KeyPoints))
		for j, p := range f.KeyPoints {
			lines[j] = "- " + RemapCitations(p, offset)
		}
		sections[i] = fmt.Sprintf("## %s\n%s", f.SubQuestion, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n"), sources
}

// RemapCitations adds offset to every [n] marker in text.
func RemapCitations(text string, offset int) string {
	if offset == 0 {
		return text
	}
	return citationPattern.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil {
			return m
		}
		return "[" + strconv.Itoa(n+offset) + "]"
	})
}
