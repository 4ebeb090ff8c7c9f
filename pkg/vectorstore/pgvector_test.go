package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPGVectorStoreTableName(t *testing.T) {
	tests := []struct {
		name  string
		table string
		ok    bool
	}{
		{"default collection", "research_history", true},
		{"digits", "history2", true},
		{"single char", "h", true},
		{"max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true},
		{"leading digit", "2history", false},
		{"dash", "research-history", false},
		{"injection", "history; DROP TABLE research_jobs", false},
		{"empty", "", false},
		{"too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := NewPGVectorStore(nil, tt.table)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, `"`+tt.table+`"`, vs.table)
		})
	}
}

func TestWhereBuilder(t *testing.T) {
	tests := []struct {
		name     string
		filter   map[string]interface{}
		want     string
		wantArgs int
		wantErr  bool
	}{
		{
			name: "empty filter",
			want: "TRUE",
		},
		{
			name:     "equality",
			filter:   map[string]interface{}{"job_id": "5f0c"},
			want:     "metadata @> $1",
			wantArgs: 1,
		},
		{
			name:     "keys joined in sorted order",
			filter:   map[string]interface{}{"kind": "report", "job_id": "5f0c"},
			want:     "metadata @> $1 AND metadata @> $2",
			wantArgs: 2,
		},
		{
			name: "$and",
			filter: map[string]interface{}{
				"$and": []interface{}{
					map[string]interface{}{"kind": "finding"},
					map[string]interface{}{"job_id": "5f0c"},
				},
			},
			want:     "((metadata @> $1) AND (metadata @> $2))",
			wantArgs: 2,
		},
		{
			name: "nested $or and $not",
			filter: map[string]interface{}{
				"$or": []interface{}{
					map[string]interface{}{"kind": "report"},
					map[string]interface{}{
						"$not": map[string]interface{}{"url": "https://example.com"},
					},
				},
			},
			want:     "((metadata @> $1) OR (NOT (metadata @> $2)))",
			wantArgs: 2,
		},
		{
			name: "$in",
			filter: map[string]interface{}{
				"kind": map[string]interface{}{"$in": []interface{}{"finding", "report"}},
			},
			want:     "metadata->>$1 = ANY($2)",
			wantArgs: 2,
		},
		{
			name: "$in with empty list matches nothing",
			filter: map[string]interface{}{
				"kind": map[string]interface{}{"$in": []interface{}{}},
			},
			want: "FALSE",
		},
		{
			name: "object without operator is containment",
			filter: map[string]interface{}{
				"source": map[string]interface{}{"url": "https://noaa.gov"},
			},
			want:     "metadata @> $1",
			wantArgs: 1,
		},
		{
			name:   "empty $or is ignored",
			filter: map[string]interface{}{"$or": []interface{}{}},
			want:   "TRUE",
		},
		{
			name:   "empty object inside $and",
			filter: map[string]interface{}{"$and": []interface{}{map[string]interface{}{}}},
			want:   "((TRUE))",
		},
		{
			name:    "$in value is not a list",
			filter:  map[string]interface{}{"kind": map[string]interface{}{"$in": "finding"}},
			wantErr: true,
		},
		{
			name:    "$or value is not a list",
			filter:  map[string]interface{}{"$or": "report"},
			wantErr: true,
		},
		{
			name:    "$and item is not an object",
			filter:  map[string]interface{}{"$and": []interface{}{"report"}},
			wantErr: true,
		},
		{
			name:    "$not value is not an object",
			filter:  map[string]interface{}{"$not": []interface{}{"report"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &whereBuilder{}
			got, err := b.build(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, b.args, tt.wantArgs)
		})
	}
}

func TestWhereBuilderArgs(t *testing.T) {
	b := &whereBuilder{}
	got, err := b.build(map[string]interface{}{
		"job_id": "5f0c",
		"kind":   map[string]interface{}{"$in": []interface{}{"finding", 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, "metadata @> $1 AND metadata->>$2 = ANY($3)", got)
	require.Len(t, b.args, 3)
	assert.JSONEq(t, `{"job_id":"5f0c"}`, string(b.args[0].([]byte)))
	assert.Equal(t, "kind", b.args[1])
	assert.Equal(t, []string{"finding", "2"}, b.args[2])
}
