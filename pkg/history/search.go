package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mikeboe/socrates/pkg/vectorstore"
)

const DefaultTopK = 5

var ErrEmptyQuery = errors.New("history query is empty")

// Searcher answers questions about earlier research runs.
type Searcher struct {
	Store    Store
	Embedder Embedder
}

func NewSearcher(store Store, embedder Embedder) *Searcher {
	return &Searcher{Store: store, Embedder: embedder}
}

// Search returns the topK chunks closest to query, limited to jobID when set.
func (s *Searcher) Search(ctx context.Context, query string, topK int, jobID string) ([]vectorstore.SimilaritySearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	slog.Info("Search history", "query", query, "topK", topK, "job_id", jobID)

	queryEmbedding, err := s.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := s.Store.SimilaritySearch(ctx, queryEmbedding, topK, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return results, nil
}

func (s *Searcher) ByJob(ctx context.Context, jobID string) ([]vectorstore.Document, error) {
	docs, err := s.Store.GetContentByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find history for job %s: %w", jobID, err)
	}
	return docs, nil
}

// ByMetadata filters chunks with the vector store's $and / $or / $not / $in
// filter language.
func (s *Searcher) ByMetadata(ctx context.Context, filter map[string]interface{}) ([]vectorstore.Document, error) {
	docs, err := s.Store.GetContentByMetadata(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find history: %w", err)
	}
	return docs, nil
}

// Delete drops every chunk indexed for jobID.
func (s *Searcher) Delete(ctx context.Context, jobID string) (int64, error) {
	return s.Store.DeleteByJob(ctx, jobID)
}

// FormatResults renders search hits as plain text for tool responses.
func FormatResults(results []vectorstore.SimilaritySearchResult) string {
	formatted := make([]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, fmt.Sprintf("[Score]: %.3f\n%s", r.Score, formatDocument(r.Document)))
	}
	return strings.Join(formatted, "\n\n")
}

// FormatDocuments renders documents as plain text for tool responses.
func FormatDocuments(docs []vectorstore.Document) string {
	formatted := make([]string, 0, len(docs))
	for _, d := range docs {
		formatted = append(formatted, formatDocument(d))
	}
	return strings.Join(formatted, "\n\n")
}

func formatDocument(d vectorstore.Document) string {
	var sb strings.Builder
	jobID := "unknown"
	if s, ok := d.Metadata["job_id"].(string); ok {
		jobID = s
	}
	fmt.Fprintf(&sb, "[Job]: %s\n[Content]: %s", jobID, d.Content)

	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		if k != "job_id" && k != "chunk" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n[%s]: %v", k, d.Metadata[k])
	}
	return sb.String()
}
