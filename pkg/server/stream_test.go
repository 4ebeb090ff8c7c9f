package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/socrates/pkg/research"
)

func progressEvent(stage research.Stage) Event {
	return Event{Type: EventProgress, Progress: &research.Progress{Stage: stage}}
}

func TestStreamHubReplayAndLive(t *testing.T) {
	hub := NewStreamHub(8, time.Minute)
	hub.Publish("job", progressEvent(research.StageDecomposing))

	ch, replay := hub.Subscribe("job", 4)
	require.Len(t, replay, 1)
	assert.Equal(t, uint64(1), replay[0].Seq)
	assert.Equal(t, "job", replay[0].JobID)
	assert.False(t, replay[0].Timestamp.IsZero())

	hub.Publish("job", progressEvent(research.StageResearching))
	evt := <-ch
	assert.Equal(t, uint64(2), evt.Seq)
	assert.Equal(t, research.StageResearching, evt.Progress.Stage)

	hub.Publish("job", Event{Type: EventDone})
	evt = <-ch
	assert.True(t, evt.Terminal())

	hub.Close("job")
	_, open := <-ch
	assert.False(t, open, "close ends subscriber channels")

	// unsubscribing after close is a no-op
	hub.Unsubscribe("job", ch)
}

func TestStreamHubSubscribeAfterClose(t *testing.T) {
	hub := NewStreamHub(8, time.Minute)
	hub.Publish("job", progressEvent(research.StageComplete))
	hub.Publish("job", Event{Type: EventDone})
	hub.Close("job")

	hub.Publish("job", progressEvent(research.StageResearching))

	ch, replay := hub.Subscribe("job", 1)
	require.Len(t, replay, 2, "events after close are discarded")
	assert.Equal(t, EventDone, replay[1].Type)
	_, open := <-ch
	assert.False(t, open)
}

func TestStreamHubRingOverwritesOldest(t *testing.T) {
	hub := NewStreamHub(3, time.Minute)
	for i := 0; i < 5; i++ {
		hub.Publish("job", progressEvent(research.StageResearching))
	}

	_, replay := hub.Subscribe("job", 1)
	require.Len(t, replay, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{replay[0].Seq, replay[1].Seq, replay[2].Seq})
}

func TestStreamHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewStreamHub(16, time.Minute)
	ch, _ := hub.Subscribe("job", 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish("job", progressEvent(research.StageResearching))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, 1)
	hub.Unsubscribe("job", ch)
}

func TestStreamHubForget(t *testing.T) {
	hub := NewStreamHub(4, time.Minute)
	hub.Publish("job", progressEvent(research.StageDecomposing))
	hub.Close("job")
	hub.Forget("job")

	ch, replay := hub.Subscribe("job", 1)
	assert.Empty(t, replay)
	hub.Unsubscribe("job", ch)
}

func TestStreamHubRetention(t *testing.T) {
	hub := NewStreamHub(4, 10*time.Millisecond)
	hub.Publish("job", progressEvent(research.StageDecomposing))
	hub.Close("job")

	assert.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.history["job"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

type logRecord struct {
	level   string
	message string
	meta    map[string]interface{}
}

type memoryLogStore struct {
	mu      sync.Mutex
	records []logRecord
}

func (m *memoryLogStore) AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error {
	var meta map[string]interface{}
	_ = json.Unmarshal(metadata, &meta)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, logRecord{level: level, message: message, meta: meta})
	return nil
}

func TestDBLogHandler(t *testing.T) {
	store := &memoryLogStore{}
	logger := slog.New(NewDBLogHandler(store, uuid.New(), slog.NewTextHandler(io.Discard, nil)))

	logger.Debug("not stored")
	logger.With("job_id", "j1").WithGroup("search").Info("Finding recorded", "sources", 3, slog.Group("llm", "calls", 2))
	logger.Error("Research failed", "error", io.ErrUnexpectedEOF)

	require.Len(t, store.records, 2)

	first := store.records[0]
	assert.Equal(t, "INFO", first.level)
	assert.Equal(t, "Finding recorded", first.message)
	assert.Equal(t, "j1", first.meta["job_id"])
	assert.Equal(t, float64(3), first.meta["search.sources"])
	assert.Equal(t, float64(2), first.meta["search.llm.calls"])

	assert.Equal(t, "unexpected EOF", store.records[1].meta["error"])
}
