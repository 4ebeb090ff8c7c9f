package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveSplitRespectsChunkSize(t *testing.T) {
	paragraph := strings.Repeat("The moon pulls the oceans. ", 10)
	text := strings.Join([]string{paragraph, paragraph, paragraph}, "\n\n")

	chunks, err := NewRecursiveCharacterTextSplitter(300, 0).SplitText(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 300)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestShortTextIsOneChunk(t *testing.T) {
	chunks, err := NewRecursiveCharacterTextSplitter(1000, 200).SplitText("Tides are caused by gravity.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tides are caused by gravity."}, chunks)
}

func TestBlankTextHasNoChunks(t *testing.T) {
	chunks, err := NewMarkdownTextSplitter(1000, 200).SplitText("   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
