package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mikeboe/socrates/pkg/metrics"
)

const (
	DefaultMaxIterations         = 3
	DefaultMaxSourcesPerQuestion = 5

	// stepsTotal is the fixed step count reported outside the researching stage.
	stepsTotal = 4
)

var ErrEmptyQuery = errors.New("query is empty")

// Config holds runtime limits for the research loop
type Config struct {
	MaxIterations         int
	MaxSourcesPerQuestion int
}

// ResearchEngine runs the decompose / research / evaluate / follow-up loop
// and synthesizes the final report. One engine may serve concurrent runs;
// all per-run data lives in a researchState owned by Run.
type ResearchEngine struct {
	Config      Config
	Search      SearchProvider
	Decomposer  *Decomposer
	Extractor   *FindingExtractor
	Evaluator   *CompletenessEvaluator
	Synthesizer *ReportSynthesizer
	Logger      *slog.Logger
	OnProgress  ProgressSink
}

// researchState tracks the working data of a single run
type researchState struct {
	query        string
	subQuestions []string
	pending      []string
	findings     []Finding
	sources      []SearchResult
	iteration    int
}

func NewEngine(cfg Config, search SearchProvider, llm TextGenerator) *ResearchEngine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxSourcesPerQuestion <= 0 {
		cfg.MaxSourcesPerQuestion = DefaultMaxSourcesPerQuestion
	}

	logger := slog.Default()
	return &ResearchEngine{
		Config:      cfg,
		Search:      search,
		Decomposer:  &Decomposer{LLM: llm, Logger: logger},
		Extractor:   &FindingExtractor{LLM: llm, Logger: logger},
		Evaluator:   &CompletenessEvaluator{LLM: llm, Logger: logger},
		Synthesizer: &ReportSynthesizer{LLM: llm, Logger: logger},
		Logger:      logger,
	}
}

// SetLogger routes the engine's and its components' logs to l.
func (e *ResearchEngine) SetLogger(l *slog.Logger) {
	e.Logger = l
	e.Decomposer.Logger = l
	e.Extractor.Logger = l
	e.Evaluator.Logger = l
	e.Synthesizer.Logger = l
}

// Run researches query and returns the synthesized result. A search or
// generation failure aborts the whole run; no partial result is returned.
func (e *ResearchEngine) Run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	result, err := e.run(ctx, query)
	if err != nil {
		metrics.Runs.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.Runs.WithLabelValues("completed").Inc()
	metrics.Iterations.Observe(float64(result.Iterations))
	return result, nil
}

func (e *ResearchEngine) run(ctx context.Context, query string) (*Result, error) {
	st := &researchState{query: query}
	e.Logger.Info("Starting research loop", "query", query, "max_iterations", e.Config.MaxIterations)

	// 1. Decompose
	e.emit(Progress{
		Stage:       StageDecomposing,
		CurrentStep: "Breaking down your question into sub-questions...",
		TotalSteps:  stepsTotal,
		StepNumber:  1,
	})

	start := time.Now()
	subQuestions, err := e.Decomposer.Decompose(ctx, query)
	observe("decomposing", start)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}
	st.subQuestions = subQuestions
	e.Logger.Info("Generated sub-questions", "sub_questions", subQuestions)

	e.emit(Progress{
		Stage:        StageDecomposing,
		CurrentStep:  fmt.Sprintf("Identified %d research areas", len(subQuestions)),
		TotalSteps:   stepsTotal,
		StepNumber:   1,
		SubQuestions: slices.Clone(subQuestions),
	})

	st.pending = slices.Clone(subQuestions)
	for st.iteration < e.Config.MaxIterations && len(st.pending) > 0 {
		st.iteration++
		e.Logger.Info("Starting iteration", "iteration", st.iteration, "max", e.Config.MaxIterations, "pending", len(st.pending))

		// 2. Research
		if err := e.researchPhase(ctx, st); err != nil {
			return nil, err
		}

		// 3. Evaluate
		verdict, err := e.evaluatePhase(ctx, st)
		if err != nil {
			return nil, err
		}

		if verdict.Complete {
			e.Logger.Info("Research complete!", "iteration", st.iteration)
			break
		}
		if st.iteration >= e.Config.MaxIterations {
			e.Logger.Info("Iteration limit reached, synthesizing what was found", "iteration", st.iteration)
			break
		}

		// 4. Follow up on gaps
		e.emit(Progress{
			Stage:        StageFollowUp,
			CurrentStep:  fmt.Sprintf("Found %d knowledge gaps, researching more...", len(verdict.Gaps)),
			TotalSteps:   stepsTotal,
			StepNumber:   4,
			Iteration:    st.iteration,
			SubQuestions: append(slices.Clone(st.subQuestions), verdict.Gaps...),
			Findings:     slices.Clone(st.findings),
		})
		e.Logger.Info("Adjusting focus", "gaps", verdict.Gaps)
		st.pending = verdict.Gaps
	}

	// 5. Synthesize
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("research cancelled: %w", err)
	}
	e.emit(Progress{
		Stage:        StageSynthesizing,
		CurrentStep:  "Compiling comprehensive report...",
		TotalSteps:   stepsTotal,
		StepNumber:   4,
		Iteration:    st.iteration,
		SubQuestions: slices.Clone(st.subQuestions),
		Findings:     slices.Clone(st.findings),
	})

	start = time.Now()
	answer, err := e.Synthesizer.Synthesize(ctx, query, st.findings)
	observe("synthesizing", start)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	e.emit(Progress{
		Stage:              StageComplete,
		CurrentStep:        "Research complete!",
		TotalSteps:         stepsTotal,
		StepNumber:         4,
		Iteration:          st.iteration,
		SubQuestions:       slices.Clone(st.subQuestions),
		Findings:           slices.Clone(st.findings),
		IntermediateAnswer: answer,
	})
	e.Logger.Info("Final report generated", "length", len(answer), "iterations", st.iteration)

	return &Result{
		Answer:       answer,
		Sources:      st.sources,
		SubQuestions: st.subQuestions,
		Findings:     st.findings,
		Iterations:   st.iteration,
	}, nil
}

func (e *ResearchEngine) researchPhase(ctx context.Context, st *researchState) error {
	start := time.Now()
	defer observe("researching", start)

	for i, q := range st.pending {
		e.emit(Progress{
			Stage:        StageResearching,
			CurrentStep:  fmt.Sprintf("Researching: %q", truncate(q, 50)),
			TotalSteps:   len(st.pending),
			StepNumber:   i + 1,
			Iteration:    st.iteration,
			SubQuestions: slices.Clone(st.subQuestions),
			Findings:     slices.Clone(st.findings),
		})

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("research cancelled: %w", err)
		}
		metrics.SearchCalls.Inc()
		sources, err := e.Search.Search(ctx, q)
		if err != nil {
			return fmt.Errorf("search failed for %q: %w", q, err)
		}
		if len(sources) > e.Config.MaxSourcesPerQuestion {
			sources = sources[:e.Config.MaxSourcesPerQuestion]
		}
		st.sources = append(st.sources, sources...)

		points, err := e.Extractor.Extract(ctx, q, sources)
		if err != nil {
			return fmt.Errorf("key point extraction failed for %q: %w", q, err)
		}

		st.findings = append(st.findings, Finding{
			SubQuestion: q,
			Sources:     sources,
			KeyPoints:   points,
		})
		e.Logger.Info("Finding recorded", "sub_question", q, "sources", len(sources), "key_points", len(points))
	}
	return nil
}

func (e *ResearchEngine) evaluatePhase(ctx context.Context, st *researchState) (Verdict, error) {
	e.emit(Progress{
		Stage:        StageEvaluating,
		CurrentStep:  "Evaluating research completeness...",
		TotalSteps:   stepsTotal,
		StepNumber:   3,
		Iteration:    st.iteration,
		SubQuestions: slices.Clone(st.subQuestions),
		Findings:     slices.Clone(st.findings),
	})

	start := time.Now()
	verdict, err := e.Evaluator.Evaluate(ctx, st.query, st.findings)
	observe("evaluating", start)
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluation failed: %w", err)
	}
	e.Logger.Info("Evaluation", "complete", verdict.Complete, "gaps", len(verdict.Gaps))
	return verdict, nil
}

func (e *ResearchEngine) emit(p Progress) {
	if e.OnProgress == nil {
		return
	}
	p.Timestamp = time.Now()
	e.OnProgress(p)
}

func observe(phase string, start time.Time) {
	metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
