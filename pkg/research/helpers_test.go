package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type generateCall struct {
	system    string
	user      string
	maxTokens int
}

// scriptedLLM replays canned responses per system prompt. When a script runs
// out, the last response repeats.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string][]string
	idx       map[string]int
	calls     []generateCall
	err       error
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{responses: map[string][]string{}, idx: map[string]int{}}
}

func (s *scriptedLLM) on(system string, responses ...string) *scriptedLLM {
	s.responses[system] = responses
	return s
}

func (s *scriptedLLM) Generate(_ context.Context, messages []Message, maxTokens int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(messages) != 2 || messages[0].Role != RoleSystem || messages[1].Role != RoleUser {
		return "", errors.New("expected a system+user message pair")
	}
	system := messages[0].Content
	s.calls = append(s.calls, generateCall{system: system, user: messages[1].Content, maxTokens: maxTokens})
	if s.err != nil {
		return "", s.err
	}

	list := s.responses[system]
	if len(list) == 0 {
		return "", errors.New("no scripted response available")
	}
	i := s.idx[system]
	if i >= len(list) {
		return list[len(list)-1], nil
	}
	s.idx[system] = i + 1
	return list[i], nil
}

func (s *scriptedLLM) callsFor(system string) []generateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []generateCall
	for _, c := range s.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

// fakeSearch returns perQuery results for every query and records the queries.
type fakeSearch struct {
	mu       sync.Mutex
	perQuery int
	queries  []string
	err      error
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	results := make([]SearchResult, f.perQuery)
	for i := range results {
		results[i] = SearchResult{
			Title:   fmt.Sprintf("%s #%d", query, i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Snippet: "snippet about " + query,
		}
	}
	return results, nil
}

type progressRecorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *progressRecorder) sink(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *progressRecorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}
