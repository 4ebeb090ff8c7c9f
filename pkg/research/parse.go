package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Generated text is treated as untrusted: each call site extracts the first
// JSON-shaped span and falls back to a typed default when that fails.

var (
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

	errNoJSON = errors.New("no JSON value found in generated text")
)

// parseStringArray decodes the first [...] span of text into a string slice.
func parseStringArray(text string) ([]string, error) {
	raw := arrayPattern.FindString(text)
	if raw == "" {
		return nil, errNoJSON
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("json parse error: %w", err)
	}
	return out, nil
}

// parseVerdict decodes the first {...} span of text into a Verdict. A missing
// "complete" field is an error so callers fall back instead of looping.
func parseVerdict(text string) (Verdict, error) {
	raw := objectPattern.FindString(text)
	if raw == "" {
		return Verdict{}, errNoJSON
	}
	var resp struct {
		Complete *bool    `json:"complete"`
		Gaps     []string `json:"gaps"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return Verdict{}, fmt.Errorf("json parse error: %w", err)
	}
	if resp.Complete == nil {
		return Verdict{}, errors.New(`missing "complete" field`)
	}
	return Verdict{Complete: *resp.Complete, Gaps: resp.Gaps}, nil
}
