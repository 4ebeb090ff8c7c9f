package research

import (
	"context"
	"time"
)

// SearchResult represents a single search result
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Finding is the evidence gathered for one sub-question.
type Finding struct {
	SubQuestion string         `json:"sub_question"`
	Sources     []SearchResult `json:"sources"`
	KeyPoints   []string       `json:"key_points"`
}

// Verdict is the completeness evaluator's decision for one pass.
type Verdict struct {
	Complete bool     `json:"complete"`
	Gaps     []string `json:"gaps"`
}

// Stage names a step of the research state machine.
type Stage string

const (
	StageDecomposing  Stage = "decomposing"
	StageResearching  Stage = "researching"
	StageEvaluating   Stage = "evaluating"
	StageFollowUp     Stage = "follow-up"
	StageSynthesizing Stage = "synthesizing"
	StageComplete     Stage = "complete"
)

// Progress is a snapshot emitted while a run advances. Slices are copies and
// may be retained by the receiver.
type Progress struct {
	Stage              Stage     `json:"stage"`
	CurrentStep        string    `json:"current_step"`
	TotalSteps         int       `json:"total_steps"`
	StepNumber         int       `json:"step_number"`
	Iteration          int       `json:"iteration"`
	SubQuestions       []string  `json:"sub_questions,omitempty"`
	Findings           []Finding `json:"findings,omitempty"`
	IntermediateAnswer string    `json:"intermediate_answer,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Result is the terminal output of one research run.
type Result struct {
	Answer       string         `json:"answer"`
	Sources      []SearchResult `json:"sources"`
	SubQuestions []string       `json:"sub_questions"`
	Findings     []Finding      `json:"findings"`
	Iterations   int            `json:"iterations"`
}

// Role is the author of a chat message sent to a TextGenerator.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of a generation prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SearchProvider executes a web query and returns at most a provider-defined
// number of results.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// TextGenerator produces text for a system+user prompt within a token
// ceiling. Implementations return an error rather than empty text when the
// backend fails.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// ProgressSink receives progress snapshots in emission order.
type ProgressSink func(Progress)

func prompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}
