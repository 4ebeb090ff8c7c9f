package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrJobNotFound is returned when no research job has the requested id.
var ErrJobNotFound = errors.New("job not found")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Query      string          `json:"query"`
	Status     JobStatus       `json:"status"`
	Report     *string         `json:"report,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Iterations int             `json:"iterations"`
	State      json.RawMessage `json:"state,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

// JobRepository persists research jobs and their logs in Postgres.
type JobRepository struct {
	db *PostgresDB
}

func NewJobRepository(db *PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

// Ping checks that the database behind the repository is reachable.
func (r *JobRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

const jobColumns = `id, query, status, report, error, iterations, state, result, config, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(
		&job.ID, &job.Query, &job.Status, &job.Report, &job.Error, &job.Iterations,
		&job.State, &job.Result, &job.Config, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (r *JobRepository) CreateJob(ctx context.Context, id uuid.UUID, query string, config json.RawMessage) (*Job, error) {
	sql := `
		INSERT INTO research_jobs (id, query, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.Pool.QueryRow(ctx, sql, id, query, config))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	sql := `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`

	job, err := scanJob(r.db.Pool.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	sql := `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM research_jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// update runs a single-row UPDATE and reports ErrJobNotFound when the job is
// gone, e.g. deleted while its worker was still running.
func (r *JobRepository) update(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) SetStatus(ctx context.Context, id uuid.UUID, status JobStatus) error {
	return r.update(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
}

// SaveState stores the latest progress snapshot of a running job.
func (r *JobRepository) SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage, iteration int) error {
	return r.update(ctx,
		"UPDATE research_jobs SET state = $2, iterations = $3, updated_at = NOW() WHERE id = $1",
		id, state, iteration)
}

func (r *JobRepository) CompleteJob(ctx context.Context, id uuid.UUID, report string, result json.RawMessage, iterations int) error {
	return r.update(ctx, `
		UPDATE research_jobs
		SET status = 'completed', report = $2, result = $3, iterations = $4, updated_at = NOW()
		WHERE id = $1`,
		id, report, result, iterations)
}

func (r *JobRepository) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	return r.update(ctx,
		"UPDATE research_jobs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1",
		id, reason)
}

func (r *JobRepository) AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error {
	query := `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query, jobID, ts, level, message, metadata)
	return err
}

func (r *JobRepository) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
