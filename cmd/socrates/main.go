package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/socrates/pkg/clients"
	"github.com/mikeboe/socrates/pkg/config"
	"github.com/mikeboe/socrates/pkg/research"
	"github.com/mikeboe/socrates/pkg/research/tools"
)

var (
	maxIterations int
	outDir        string
	verbose       bool
	mode          string
)

func main() {
	// Load .env file; it's okay if it doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "socrates",
		Short: "A terminal-based deep research agent",
		Long: `Socrates answers a question by splitting it into sub-questions, searching the web for each,
checking the findings for gaps, and writing a cited markdown report.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every research step")

	researchCmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Run a full research loop and write a report",
		RunE:  runResearch,
	}
	researchCmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", 0, "Research passes before synthesizing (default from MAX_ITERATIONS)")
	researchCmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory for the report and sources files")

	askCmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a question from a single web search",
		RunE:  runAsk,
	}
	askCmd.Flags().StringVarP(&mode, "mode", "m", string(research.ModeSimple), "Answer style: simple or detailed")

	rootCmd.AddCommand(researchCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// queryFrom joins the arguments or, without any, prompts for a query.
func queryFrom(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}

	// Interactive Mode
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter research question: ")
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	query := strings.TrimSpace(input)
	if query == "" {
		return "", research.ErrEmptyQuery
	}
	return query, nil
}

func setup(ctx context.Context) (*config.Config, research.SearchProvider, research.TextGenerator, error) {
	cfg := config.Load()
	if maxIterations > 0 {
		cfg.MaxIterations = maxIterations
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	llm, err := clients.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	search, err := tools.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, search, llm, nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query, err := queryFrom(args)
	if err != nil {
		return err
	}

	cfg, search, llm, err := setup(ctx)
	if err != nil {
		return err
	}

	engine := research.NewEngine(research.Config{
		MaxIterations:         cfg.MaxIterations,
		MaxSourcesPerQuestion: cfg.MaxSourcesPerQuestion,
	}, search, llm)
	engine.SetLogger(slog.Default())
	engine.OnProgress = func(p research.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", p.Stage, p.CurrentStep)
	}

	res, err := engine.Run(ctx, query)
	if err != nil {
		return err
	}

	reportPath, sourcesPath, err := writeOutputs(outDir, res, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
	fmt.Fprintf(cmd.ErrOrStderr(), "\nReport saved to %s (%d iterations, %d sources)\nSources saved to %s\n",
		reportPath, res.Iterations, len(res.Sources), sourcesPath)
	return nil
}

// writeOutputs stores the report as markdown and the sources as JSON.
func writeOutputs(dir string, res *research.Result, now time.Time) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	reportPath := filepath.Join(dir, fmt.Sprintf("report_%d.md", now.Unix()))
	if err := os.WriteFile(reportPath, []byte(res.Answer), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	sources := res.Sources
	if sources == nil {
		sources = []research.SearchResult{}
	}
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode sources: %w", err)
	}
	sourcesPath := filepath.Join(dir, "sources.json")
	if err := os.WriteFile(sourcesPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write sources: %w", err)
	}
	return reportPath, sourcesPath, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query, err := queryFrom(args)
	if err != nil {
		return err
	}
	m, err := research.ParseMode(mode)
	if err != nil {
		return err
	}

	_, search, llm, err := setup(ctx)
	if err != nil {
		return err
	}

	answer, err := (&research.QuickAnswerer{Search: search, LLM: llm}).Answer(ctx, query, m)
	if err != nil {
		if errors.Is(err, research.ErrEmptyQuery) {
			return fmt.Errorf("a question is required")
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
		for i, s := range answer.Sources {
			fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s - %s\n", i+1, s.Title, s.URL)
		}
	}
	return nil
}
