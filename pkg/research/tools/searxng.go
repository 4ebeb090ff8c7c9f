package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikeboe/socrates/pkg/research"
)

// SearXNG queries a self-hosted SearXNG instance through its JSON API.
type SearXNG struct {
	BaseURL    string
	MaxResults int
	client     *http.Client
}

func NewSearXNG(baseURL string, maxResults int) *SearXNG {
	return NewSearXNGWithClient(baseURL, maxResults, &http.Client{Timeout: 30 * time.Second})
}

// NewSearXNGWithClient is NewSearXNG with a caller-supplied HTTP client.
func NewSearXNGWithClient(baseURL string, maxResults int, client *http.Client) *SearXNG {
	if maxResults <= 0 {
		maxResults = research.DefaultMaxSourcesPerQuestion
	}
	return &SearXNG{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MaxResults: maxResults,
		client:     client,
	}
}

func (s *SearXNG) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("categories", "general")

	apiURL := s.BaseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("SearXNG returned non-200 status code", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, fmt.Errorf("searxng search failed: %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode searxng response: %w", err)
	}

	results := make([]research.SearchResult, 0, min(len(payload.Results), s.MaxResults))
	for _, r := range payload.Results {
		if len(results) >= s.MaxResults {
			break
		}
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		results = append(results, research.SearchResult{Title: title, URL: r.URL, Snippet: r.Content})
	}

	slog.Debug("SearXNG search successful", "query", query, "count", len(results))
	return results, nil
}
