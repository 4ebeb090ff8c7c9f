package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/socrates/pkg/research"
)

const tavilyBaseURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	// Depth is Tavily's search_depth parameter (basic or advanced).
	Depth  string
	client *http.Client
}

func NewTavily(apiKey, depth string, maxResults int) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	if maxResults <= 0 {
		maxResults = research.DefaultMaxSourcesPerQuestion
	}
	return &Tavily{
		APIKey:     apiKey,
		BaseURL:    tavilyBaseURL,
		MaxResults: maxResults,
		Depth:      depth,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Search posts a query to Tavily, backing off on 429 responses.
func (t *Tavily) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.APIKey,
		"search_depth": t.Depth,
		"max_results":  t.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tavily: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: failed to decode response: %w", err)
	}

	results := make([]research.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		if len(results) >= t.MaxResults {
			break
		}
		results = append(results, research.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}
