package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/socrates/pkg/database"
	"github.com/mikeboe/socrates/pkg/history"
	"github.com/mikeboe/socrates/pkg/metrics"
	"github.com/mikeboe/socrates/pkg/research"
)

// listLimit caps the number of jobs returned by ListJobs.
const listLimit = 50

// JobStore persists research jobs. database.JobRepository implements it.
type JobStore interface {
	LogStore
	CreateJob(ctx context.Context, id uuid.UUID, query string, config json.RawMessage) (*database.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]database.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status database.JobStatus) error
	SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage, iteration int) error
	CompleteJob(ctx context.Context, id uuid.UUID, report string, result json.RawMessage, iterations int) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error)
}

type Service struct {
	Store  JobStore
	Hub    *StreamHub
	Search research.SearchProvider
	LLM    research.TextGenerator
	Cfg    research.Config

	// Indexer and History are nil when the history index is disabled.
	Indexer *history.Indexer
	History *history.Searcher

	// Console receives a copy of every job log record.
	Console slog.Handler

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(store JobStore, search research.SearchProvider, llm research.TextGenerator, cfg research.Config) *Service {
	return &Service{
		Store:   store,
		Hub:     NewStreamHub(0, 0),
		Search:  search,
		LLM:     llm,
		Cfg:     cfg,
		Console: slog.Default().Handler(),
		running: make(map[uuid.UUID]context.CancelFunc),
	}
}

type CreateJobRequest struct {
	Query string `json:"query"`
}

func (s *Service) newEngine() *research.ResearchEngine {
	return research.NewEngine(s.Cfg, s.Search, s.LLM)
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*database.Job, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, research.ErrEmptyQuery
	}

	configJSON, _ := json.Marshal(map[string]interface{}{
		"max_iterations":           s.Cfg.MaxIterations,
		"max_sources_per_question": s.Cfg.MaxSourcesPerQuestion,
	})

	job, err := s.Store.CreateJob(ctx, uuid.New(), query, configJSON)
	if err != nil {
		return nil, err
	}

	// Start background worker; DeleteJob cancels it through the running map
	workerCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.stop(job.ID)
		s.runWorker(workerCtx, job.ID, query)
	}()

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]database.Job, error) {
	return s.Store.ListJobs(ctx, listLimit)
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error) {
	return s.Store.GetJobLogs(ctx, jobID)
}

// stop cancels the worker of a running job, if any.
func (s *Service) stop(id uuid.UUID) {
	s.mu.Lock()
	cancel, ok := s.running[id]
	delete(s.running, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// DeleteJob stops the job's worker and removes the job, its logs and its
// indexed history.
func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID) error {
	s.stop(id)
	if err := s.Store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.Hub.Forget(id.String())

	if s.History != nil {
		n, err := s.History.Delete(ctx, id.String())
		if err != nil {
			slog.Error("Failed to delete research history", "job_id", id, "error", err)
		} else {
			slog.Info("Deleted research history", "job_id", id, "chunks", n)
		}
	}
	return nil
}

// Subscribe streams the progress events of a job; see StreamHub.Subscribe.
func (s *Service) Subscribe(id uuid.UUID) (chan Event, []Event) {
	return s.Hub.Subscribe(id.String(), 64)
}

func (s *Service) Unsubscribe(id uuid.UUID, ch chan Event) {
	s.Hub.Unsubscribe(id.String(), ch)
}

// RunSync researches query within the caller's context and returns the result
// without creating a job.
func (s *Service) RunSync(ctx context.Context, query string) (*research.Result, error) {
	return s.newEngine().Run(ctx, query)
}

// QuickAnswer answers query from a single search.
func (s *Service) QuickAnswer(ctx context.Context, query, mode string) (*research.QuickAnswer, error) {
	m, err := research.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	q := &research.QuickAnswerer{Search: s.Search, LLM: s.LLM}
	return q.Answer(ctx, query, m)
}

// Wait blocks until all background jobs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runWorker(ctx context.Context, jobID uuid.UUID, query string) {
	key := jobID.String()
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()
	defer s.Hub.Close(key)

	dbLogger := slog.New(NewDBLogHandler(s.Store, jobID, s.Console)).With("job_id", key)
	console := slog.New(s.Console).With("job_id", key)

	if err := s.Store.SetStatus(ctx, jobID, database.JobRunning); err != nil {
		dbLogger.Error("Failed to mark job running", "error", err)
	}

	engine := s.newEngine()
	engine.SetLogger(dbLogger)

	states := newStateWriter(s.Store, jobID, console)
	engine.OnProgress = func(p research.Progress) {
		s.Hub.Publish(key, Event{Type: EventProgress, Progress: &p, Timestamp: p.Timestamp})
		states.Push(p)
	}

	res, err := engine.Run(ctx, query)
	states.Close()
	if ctx.Err() != nil {
		// Deleted while running; the job row is already gone
		console.Info("Research cancelled", "error", err)
		return
	}
	if err != nil {
		s.failJob(dbLogger, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		s.failJob(dbLogger, jobID, fmt.Sprintf("Failed to encode result: %v", err))
		return
	}
	err = s.Store.CompleteJob(ctx, jobID, res.Answer, resultJSON, res.Iterations)
	if errors.Is(err, database.ErrJobNotFound) {
		console.Info("Job deleted before completion, skipping history")
		return
	}
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}
	s.Hub.Publish(key, Event{Type: EventDone, Timestamp: time.Now()})

	if s.Indexer != nil {
		s.index(ctx, dbLogger, key, query, res)
	}
}

// index stores the job's history. A delete that lands while indexing cancels
// ctx, after which any chunks that made it in are removed again.
func (s *Service) index(ctx context.Context, logger *slog.Logger, key, query string, res *research.Result) {
	if _, err := s.Indexer.Index(ctx, key, query, res); err != nil && ctx.Err() == nil {
		logger.Warn("Failed to index research history", "error", err)
	}
	if ctx.Err() == nil || s.History == nil {
		return
	}
	if _, err := s.History.Delete(context.Background(), key); err != nil {
		slog.New(s.Console).Error("Failed to remove history of deleted job", "job_id", key, "error", err)
	}
}

func (s *Service) failJob(logger *slog.Logger, jobID uuid.UUID, reason string) {
	logger.Error(reason)
	if err := s.Store.FailJob(context.Background(), jobID, reason); err != nil {
		logger.Error("Failed to mark job failed", "error", err)
	}
	s.Hub.Publish(jobID.String(), Event{Type: EventError, Error: reason, Timestamp: time.Now()})
}
