package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/socrates/pkg/research"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches arXiv papers. Useful when research topics are academic.
type Arxiv struct {
	BaseURL    string
	MaxResults int
	client     *http.Client
}

func NewArxiv(maxResults int) *Arxiv {
	if maxResults <= 0 {
		maxResults = research.DefaultMaxSourcesPerQuestion
	}
	return &Arxiv{BaseURL: arxivBaseURL, MaxResults: maxResults, client: &http.Client{Timeout: 30 * time.Second}}
}

// Search queries the arXiv API and maps each entry to a SearchResult whose URL
// is the PDF link when present.
func (a *Arxiv) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(a.MaxResults))
	params.Add("start", "0")

	apiURL := a.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("API returned non-200 status code", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("arxiv API returned non-200 status code: %d", resp.StatusCode)
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]research.SearchResult, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		if len(results) >= a.MaxResults {
			break
		}
		title := collapseSpace(entry.Title)
		if title == "" {
			continue
		}
		results = append(results, research.SearchResult{
			Title:   title,
			URL:     entry.link(),
			Snippet: collapseSpace(entry.Summary),
		})
	}

	slog.Debug("Arxiv search successful", "query", query, "count", len(results))
	return results, nil
}

func (e ArxivEntry) link() string {
	for _, l := range e.Link {
		if l.Type == "application/pdf" {
			return l.Href
		}
	}
	return strings.TrimSpace(e.ID)
}

// collapseSpace joins the hard-wrapped lines arXiv returns in titles and abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
