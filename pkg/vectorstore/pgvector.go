package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Document is one indexed chunk of a research job with its embedding
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// SimilaritySearchResult is a document with its cosine similarity to the query.
type SimilaritySearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Postgres identifiers: letter or underscore first, at most 63 characters.
var tableNamePattern = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// PGVectorStore stores research history chunks in a pgvector table
type PGVectorStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name %q: start with a lowercase letter or underscore, then letters, digits or underscores (max 63)", tableName)
	}
	return &PGVectorStore{
		pool:  pool,
		table: pgx.Identifier{tableName}.Sanitize(),
	}, nil
}

// AddDocuments inserts the documents in one batch.
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2, $3)`, vs.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(query, doc.Content, metadata, pgvector.NewVector(doc.Embedding))
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert document %d: %w", i, err)
		}
	}
	return nil
}

// SimilaritySearch returns the topK documents closest to the query embedding.
// A non-empty jobFilter limits the search to one research job.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, jobFilter string) ([]SimilaritySearchResult, error) {
	b := &whereBuilder{}
	vec := b.arg(pgvector.NewVector(queryEmbedding))

	where := "TRUE"
	if jobFilter != "" {
		where = "metadata->>'job_id' = " + b.arg(jobFilter)
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> %[1]s) AS similarity
		FROM %[2]s
		WHERE %[3]s
		ORDER BY embedding <=> %[1]s
		LIMIT %[4]s
	`, vec, vs.table, where, b.arg(topK))

	rows, err := vs.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	results := []SimilaritySearchResult{}
	for rows.Next() {
		var r SimilaritySearchResult
		var metadata []byte
		if err := rows.Scan(&r.Document.ID, &r.Document.Content, &metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadata, &r.Document.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// GetContentByJob returns every chunk indexed for a job in insertion order.
func (vs *PGVectorStore) GetContentByJob(ctx context.Context, jobID string) ([]Document, error) {
	return vs.query(ctx, fmt.Sprintf(`
		SELECT id, content, metadata FROM %s
		WHERE metadata->>'job_id' = $1
		ORDER BY created_at, (metadata->>'chunk')::int
	`, vs.table), jobID)
}

// GetContentByMetadata returns the chunks matching a metadata filter.
func (vs *PGVectorStore) GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]Document, error) {
	b := &whereBuilder{}
	where, err := b.build(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}
	return vs.query(ctx, fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE %s ORDER BY created_at`, vs.table, where), b.args...)
}

// DeleteByJob removes a job's chunks and reports how many went.
func (vs *PGVectorStore) DeleteByJob(ctx context.Context, jobID string) (int64, error) {
	tag, err := vs.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE metadata->>'job_id' = $1`, vs.table), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (vs *PGVectorStore) query(ctx context.Context, sql string, args ...interface{}) ([]Document, error) {
	rows, err := vs.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return docs, nil
}
