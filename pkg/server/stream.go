package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mikeboe/socrates/pkg/metrics"
	"github.com/mikeboe/socrates/pkg/research"
)

const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// Event is one message on a job's progress stream.
type Event struct {
	JobID     string             `json:"job_id"`
	Type      string             `json:"type"`
	Progress  *research.Progress `json:"progress,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Seq       uint64             `json:"seq"`
}

// Marshal returns JSON for event payloads in SSE or logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Terminal reports whether no further events follow e on its stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

const (
	defaultStreamCapacity  = 256
	defaultStreamRetention = 10 * time.Minute
)

// StreamHub provides in-memory pub/sub for job progress events, with a
// per-job ring buffer so late subscribers can replay what they missed.
type StreamHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	closed      map[string]bool
	capacity    int
	// retention is how long a closed job's events stay replayable.
	retention time.Duration
}

func NewStreamHub(capacity int, retention time.Duration) *StreamHub {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	if retention <= 0 {
		retention = defaultStreamRetention
	}
	return &StreamHub{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		closed:      make(map[string]bool),
		capacity:    capacity,
		retention:   retention,
	}
}

// Subscribe returns the buffered events of jobID and a channel for the ones
// that follow. The channel is closed when the job's stream ends; callers that
// stop reading early must call Unsubscribe.
func (h *StreamHub) Subscribe(jobID string, buffer int) (chan Event, []Event) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()

	var replay []Event
	if rg := h.history[jobID]; rg != nil {
		replay = rg.since(0)
	}
	if h.closed[jobID] {
		close(ch)
		return ch, replay
	}

	subs := h.subscribers[jobID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		h.subscribers[jobID] = subs
	}
	subs[ch] = struct{}{}
	return ch, replay
}

// Unsubscribe removes the subscriber channel and closes it.
func (h *StreamHub) Unsubscribe(jobID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[jobID]; ok {
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, jobID)
		}
	}
}

// Publish records evt and sends it to all subscribers of jobID without
// blocking; slow subscribers miss the event. Events for closed jobs are
// discarded.
func (h *StreamHub) Publish(jobID string, evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed[jobID] {
		return
	}

	rg := h.history[jobID]
	if rg == nil {
		rg = newRing(h.capacity)
		h.history[jobID] = rg
	}
	rg.nextSeq++
	evt.Seq = rg.nextSeq
	evt.JobID = jobID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	rg.push(evt)

	for ch := range h.subscribers[jobID] {
		select {
		case ch <- evt:
		default:
			metrics.StreamEventsDropped.Inc()
		}
	}
}

// Close ends the stream of jobID: subscribers' channels are closed and the
// buffered events are kept for the retention period.
func (h *StreamHub) Close(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed[jobID] {
		return
	}
	h.closed[jobID] = true
	for ch := range h.subscribers[jobID] {
		close(ch)
	}
	delete(h.subscribers, jobID)

	time.AfterFunc(h.retention, func() { h.Forget(jobID) })
}

// Forget drops everything the hub knows about jobID.
func (h *StreamHub) Forget(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[jobID] {
		close(ch)
	}
	delete(h.subscribers, jobID)
	delete(h.history, jobID)
	delete(h.closed, jobID)
}

// ring is a fixed-capacity ring buffer of events
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	// overwrite oldest
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
