// Package history indexes finished research runs into the vector store so
// earlier findings and reports can be searched semantically.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/socrates/pkg/research"
	"github.com/mikeboe/socrates/pkg/vectorstore"
)

const (
	KindFinding = "finding"
	KindReport  = "report"
)

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type Splitter interface {
	SplitText(text string) ([]string, error)
}

// Store is the subset of vectorstore.PGVectorStore used for research history.
type Store interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, jobFilter string) ([]vectorstore.SimilaritySearchResult, error)
	GetContentByJob(ctx context.Context, jobID string) ([]vectorstore.Document, error)
	GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]vectorstore.Document, error)
	DeleteByJob(ctx context.Context, jobID string) (int64, error)
}

// Indexer chunks and embeds the findings and report of a research result.
type Indexer struct {
	Store    Store
	Embedder Embedder
	Splitter Splitter
	Logger   *slog.Logger
}

func NewIndexer(store Store, embedder Embedder, splitter Splitter) *Indexer {
	return &Indexer{Store: store, Embedder: embedder, Splitter: splitter, Logger: slog.Default()}
}

// Index stores the result of job jobID and returns the number of chunks written.
func (ix *Indexer) Index(ctx context.Context, jobID, query string, res *research.Result) (int, error) {
	docs, err := ix.Documents(jobID, query, res)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := ix.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed history: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := ix.Store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to store history: %w", err)
	}

	if ix.Logger != nil {
		ix.Logger.Info("Indexed research history", "job_id", jobID, "chunks", len(docs))
	}
	return len(docs), nil
}

// Documents builds the chunks for a result without embedding them. Findings
// come first in research order, followed by the report.
func (ix *Indexer) Documents(jobID, query string, res *research.Result) ([]vectorstore.Document, error) {
	if res == nil {
		return nil, nil
	}

	var docs []vectorstore.Document
	add := func(text string, meta map[string]interface{}) error {
		chunks, err := ix.Splitter.SplitText(text)
		if err != nil {
			return fmt.Errorf("failed to split %s: %w", meta["kind"], err)
		}
		for _, c := range chunks {
			m := map[string]interface{}{"job_id": jobID, "query": query, "chunk": len(docs)}
			for k, v := range meta {
				m[k] = v
			}
			docs = append(docs, vectorstore.Document{Content: c, Metadata: m})
		}
		return nil
	}

	for _, f := range res.Findings {
		meta := map[string]interface{}{"kind": KindFinding, "sub_question": f.SubQuestion}
		if len(f.Sources) > 0 {
			meta["url"] = f.Sources[0].URL
		}
		if err := add(findingText(f), meta); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(res.Answer) != "" {
		if err := add(res.Answer, map[string]interface{}{"kind": KindReport}); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func findingText(f research.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sub-question: %s\n", f.SubQuestion)
	if len(f.KeyPoints) > 0 {
		sb.WriteString("\nKey points:\n")
		for _, p := range f.KeyPoints {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if len(f.Sources) > 0 {
		sb.WriteString("\nSources:\n")
		for i, s := range f.Sources {
			fmt.Fprintf(&sb, "[%d] %s (%s)\n", i+1, s.Title, s.URL)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
