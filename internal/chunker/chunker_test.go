package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	c := New(100, 10)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := New(100, 10)
	chunks := c.Split("A short document.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short document.", chunks[0])
}

func TestSplit_ChunksRespectBudget(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 50)
		assert.NotEmpty(t, chunk)
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	c := New(40, 0)
	text := "First sentence here. Second sentence is quite a bit longer than the first."
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "First sentence here.", chunks[0])
}

func TestSplit_OverlapCarriesText(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("abcdefghi ", 30)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	// Each chunk's opening characters appear near the end of its
	// predecessor, because the window backs up by the overlap.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i]
		if len(head) > 5 {
			head = head[:5]
		}
		assert.Contains(t, chunks[i-1], head)
	}
}

func TestSplit_CoversAllText(t *testing.T) {
	c := New(60, 10)
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
		"hotel", "india", "juliet", "kilo", "lima", "mike", "november"}
	text := strings.Join(words, " ")
	joined := strings.Join(c.Split(text), " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, -1)
	assert.Equal(t, DefaultChunkSize, c.chunkSize)
	assert.Equal(t, DefaultOverlap, c.overlap)
}
