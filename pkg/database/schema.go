package database

import (
	"context"
	"fmt"
)

// HNSW indexes support at most this many dimensions.
const maxIndexedDimension = 2000

// schemaSteps create the job and log tables. Every step is idempotent so
// InitSchema runs on each start.
var schemaSteps = []struct {
	name string
	sql  string
}{
	{"research_jobs table", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			query TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			report TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	// Progress snapshot, final result and failure reason
	{"research_jobs progress columns", `
		ALTER TABLE research_jobs
		ADD COLUMN IF NOT EXISTS state JSONB,
		ADD COLUMN IF NOT EXISTS result JSONB,
		ADD COLUMN IF NOT EXISTS iterations INTEGER NOT NULL DEFAULT 0,
		ADD COLUMN IF NOT EXISTS error TEXT`},
	{"research_logs table", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"research_logs job index", "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id, timestamp)"},
	{"research_jobs created_at index", "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"},
}

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, step := range schemaSteps {
		if _, err := db.Pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", step.name, err)
		}
	}
	return nil
}

// InitHistorySchema prepares the pgvector collection that holds indexed
// findings and reports. Larger embeddings skip the HNSW index and fall back to
// exact search.
func (db *PostgresDB) InitHistorySchema(ctx context.Context, table string, dimension int) error {
	if _, err := db.Pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, table, dimension))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	// Lookups and deletes by job go through metadata->>'job_id'
	_, err = db.Pool.Exec(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %[1]s_job_id_idx ON %[1]s ((metadata->>'job_id'))", table))
	if err != nil {
		return fmt.Errorf("failed to create job index on %s: %w", table, err)
	}

	if dimension <= maxIndexedDimension {
		_, err = db.Pool.Exec(ctx, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)", table))
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", table, err)
		}
	}
	return nil
}
