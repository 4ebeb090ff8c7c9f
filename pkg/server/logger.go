package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogStore persists log records of a research job.
type LogStore interface {
	AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error
}

// DBLogHandler is a slog.Handler that writes records to the job's log table
// and, when Next is set, forwards them to another handler as well.
type DBLogHandler struct {
	Store LogStore
	JobID uuid.UUID
	Level slog.Leveler
	Next  slog.Handler

	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(store LogStore, jobID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{
		Store: store,
		JobID: jobID,
		Level: slog.LevelInfo,
		Next:  next,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.Level != nil && level >= h.Level.Level() {
		return true
	}
	return h.Next != nil && h.Next.Enabled(ctx, level)
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		_ = h.Next.Handle(ctx, r.Clone())
	}
	if h.Level != nil && r.Level < h.Level.Level() {
		return nil
	}

	attrs := make(map[string]interface{})
	for _, a := range h.attrs {
		put(attrs, "", a)
	}
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		put(attrs, prefix, a)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		// Fallback for marshal error
		metaJSON = []byte("{}")
	}

	// Background context so logs persist after the request that started the job ends
	return h.Store.AppendLog(context.Background(), h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
}

// put flattens a into dst, joining group names with dots.
func put(dst map[string]interface{}, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			put(dst, inner, ga)
		}
		return
	}
	if err, ok := a.Value.Any().(error); ok {
		dst[prefix+a.Key] = err.Error()
		return
	}
	dst[prefix+a.Key] = a.Value.Any()
}

func (h *DBLogHandler) groupPrefix() string {
	prefix := ""
	for _, g := range h.groups {
		prefix += g + "."
	}
	return prefix
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), h.qualify(attrs)...)
	if h.Next != nil {
		clone.Next = h.Next.WithAttrs(attrs)
	}
	return &clone
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	if h.Next != nil {
		clone.Next = h.Next.WithGroup(name)
	}
	return &clone
}

// qualify prefixes attrs with the current groups so later WithGroup calls
// do not change their keys.
func (h *DBLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	prefix := h.groupPrefix()
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}
