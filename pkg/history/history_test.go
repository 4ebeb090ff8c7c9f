package history

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/socrates/pkg/research"
	"github.com/mikeboe/socrates/pkg/vectorstore"
)

type memoryStore struct {
	docs      []vectorstore.Document
	jobFilter string
	topK      int
	filter    map[string]interface{}
}

func (m *memoryStore) AddDocuments(ctx context.Context, docs []vectorstore.Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memoryStore) SimilaritySearch(ctx context.Context, q []float32, topK int, jobFilter string) ([]vectorstore.SimilaritySearchResult, error) {
	m.topK, m.jobFilter = topK, jobFilter
	var out []vectorstore.SimilaritySearchResult
	for _, d := range m.docs {
		if jobFilter == "" || d.Metadata["job_id"] == jobFilter {
			out = append(out, vectorstore.SimilaritySearchResult{Document: d, Score: 0.9})
		}
	}
	return out, nil
}

func (m *memoryStore) GetContentByJob(ctx context.Context, jobID string) ([]vectorstore.Document, error) {
	var out []vectorstore.Document
	for _, d := range m.docs {
		if d.Metadata["job_id"] == jobID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStore) GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]vectorstore.Document, error) {
	m.filter = filter
	return m.docs, nil
}

func (m *memoryStore) DeleteByJob(ctx context.Context, jobID string) (int64, error) {
	kept := m.docs[:0]
	var n int64
	for _, d := range m.docs {
		if d.Metadata["job_id"] == jobID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return n, nil
}

type fakeEmbedder struct {
	err     error
	queries []string
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{1, 0}, f.err
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

// lineSplitter returns one chunk per paragraph.
type lineSplitter struct{}

func (lineSplitter) SplitText(text string) ([]string, error) {
	return strings.Split(text, "\n\n"), nil
}

func tidesResult() *research.Result {
	return &research.Result{
		Answer: "# Tides\n\nThe moon drives tides [1].",
		Findings: []research.Finding{
			{
				SubQuestion: "moon gravity",
				Sources:     []research.SearchResult{{Title: "NOAA", URL: "https://noaa.gov"}},
				KeyPoints:   []string{"The moon pulls water [1]"},
			},
			{SubQuestion: "sun role", KeyPoints: []string{}},
		},
	}
}

func TestIndexerDocuments(t *testing.T) {
	ix := NewIndexer(&memoryStore{}, &fakeEmbedder{}, lineSplitter{})

	docs, err := ix.Documents("job-1", "What causes tides?", tidesResult())
	require.NoError(t, err)

	// finding 1 has three paragraphs, finding 2 one, the report two
	require.Len(t, docs, 6)

	first := docs[0]
	assert.Equal(t, "Sub-question: moon gravity", first.Content)
	assert.Equal(t, "job-1", first.Metadata["job_id"])
	assert.Equal(t, "What causes tides?", first.Metadata["query"])
	assert.Equal(t, KindFinding, first.Metadata["kind"])
	assert.Equal(t, "https://noaa.gov", first.Metadata["url"])
	assert.Equal(t, "Sources:\n[1] NOAA (https://noaa.gov)", docs[2].Content)

	_, hasURL := docs[3].Metadata["url"]
	assert.False(t, hasURL, "findings without sources carry no url")

	assert.Equal(t, KindReport, docs[5].Metadata["kind"])
	for i, d := range docs {
		assert.Equal(t, i, d.Metadata["chunk"])
	}
}

func TestIndexerIndex(t *testing.T) {
	store := &memoryStore{}
	ix := NewIndexer(store, &fakeEmbedder{}, lineSplitter{})

	n, err := ix.Index(context.Background(), "job-1", "tides", tidesResult())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.Len(t, store.docs, 6)
	assert.Equal(t, []float32{5, 1}, store.docs[5].Embedding)
}

func TestIndexerEmbedFailure(t *testing.T) {
	store := &memoryStore{}
	embedErr := errors.New("quota exceeded")
	ix := NewIndexer(store, &fakeEmbedder{err: embedErr}, lineSplitter{})

	_, err := ix.Index(context.Background(), "job-1", "tides", tidesResult())
	assert.ErrorIs(t, err, embedErr)
	assert.Empty(t, store.docs)
}

func TestIndexerNilResult(t *testing.T) {
	n, err := NewIndexer(&memoryStore{}, &fakeEmbedder{}, lineSplitter{}).Index(context.Background(), "j", "q", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearcher(t *testing.T) {
	store := &memoryStore{}
	emb := &fakeEmbedder{}
	ctx := context.Background()

	_, err := NewIndexer(store, emb, lineSplitter{}).Index(ctx, "job-1", "tides", tidesResult())
	require.NoError(t, err)
	_, err = NewIndexer(store, emb, lineSplitter{}).Index(ctx, "job-2", "volcanoes", &research.Result{Answer: "lava"})
	require.NoError(t, err)

	s := NewSearcher(store, emb)

	t.Run("Search defaults topK", func(t *testing.T) {
		hits, err := s.Search(ctx, "moon", 0, "job-2")
		require.NoError(t, err)
		assert.Equal(t, DefaultTopK, store.topK)
		assert.Equal(t, "job-2", store.jobFilter)
		require.Len(t, hits, 1)
		assert.Equal(t, []string{"moon"}, emb.queries)
	})

	t.Run("Empty query", func(t *testing.T) {
		_, err := s.Search(ctx, "  ", 3, "")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("ByJob", func(t *testing.T) {
		docs, err := s.ByJob(ctx, "job-1")
		require.NoError(t, err)
		assert.Len(t, docs, 6)
	})

	t.Run("ByMetadata passes filter", func(t *testing.T) {
		filter := map[string]interface{}{"kind": KindReport}
		_, err := s.ByMetadata(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, filter, store.filter)
	})

	t.Run("Delete", func(t *testing.T) {
		n, err := s.Delete(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
		docs, _ := s.ByJob(ctx, "job-1")
		assert.Empty(t, docs)
	})
}

func TestFormat(t *testing.T) {
	doc := vectorstore.Document{
		Content:  "The moon pulls water [1]",
		Metadata: map[string]interface{}{"job_id": "job-1", "kind": "finding", "chunk": 0, "sub_question": "moon"},
	}

	assert.Equal(t,
		"[Job]: job-1\n[Content]: The moon pulls water [1]\n[kind]: finding\n[sub_question]: moon",
		FormatDocuments([]vectorstore.Document{doc}))

	assert.Equal(t,
		"[Score]: 0.875\n[Job]: job-1\n[Content]: The moon pulls water [1]\n[kind]: finding\n[sub_question]: moon",
		FormatResults([]vectorstore.SimilaritySearchResult{{Document: doc, Score: 0.875}}))

	assert.Empty(t, FormatDocuments(nil))
}
