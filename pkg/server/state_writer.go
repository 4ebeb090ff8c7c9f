package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/socrates/pkg/database"
	"github.com/mikeboe/socrates/pkg/research"
)

// stateWriteTimeout bounds one progress snapshot write.
var stateWriteTimeout = 5 * time.Second

// stateWriter persists progress snapshots of one job on its own goroutine so
// a slow database never holds up the research loop. While a write is in
// flight only the newest pending snapshot is kept.
type stateWriter struct {
	store  JobStore
	jobID  uuid.UUID
	logger *slog.Logger

	pending chan research.Progress
	done    chan struct{}
}

func newStateWriter(store JobStore, jobID uuid.UUID, logger *slog.Logger) *stateWriter {
	w := &stateWriter{
		store:   store,
		jobID:   jobID,
		logger:  logger,
		pending: make(chan research.Progress, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Push queues p, replacing any snapshot that has not been written yet. It
// must be called from a single goroutine.
func (w *stateWriter) Push(p research.Progress) {
	for {
		select {
		case w.pending <- p:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

// Close flushes the last queued snapshot and stops the writer.
func (w *stateWriter) Close() {
	close(w.pending)
	<-w.done
}

func (w *stateWriter) run() {
	defer close(w.done)
	for p := range w.pending {
		w.write(p)
	}
}

func (w *stateWriter) write(p research.Progress) {
	state, err := json.Marshal(p)
	if err != nil {
		w.logger.Error("Failed to marshal state", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
	defer cancel()
	err = w.store.SaveState(ctx, w.jobID, state, p.Iteration)
	switch {
	case errors.Is(err, database.ErrJobNotFound):
		w.logger.Debug("Job gone, dropping state snapshot", "stage", p.Stage)
	case err != nil:
		w.logger.Error("Failed to save state to DB", "error", err)
	}
}
