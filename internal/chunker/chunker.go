// Package chunker splits extracted document text into the bounded,
// overlapping chunks used as the unit of embedding and retrieval.
package chunker

import (
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is how many trailing characters a chunk shares with
	// its successor.
	DefaultOverlap = 100
)

// Chunker splits text by character budget, preferring to cut at sentence
// or word boundaries near the budget.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. Non-positive arguments fall back to defaults.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 10
		}
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split returns the ordered chunk sequence for text. Whitespace-only input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := c.findBreak(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak looks backwards from end for a sentence boundary, then a word
// boundary, and falls back to a hard cut at end.
func (c *Chunker) findBreak(runes []rune, start, end int) int {
	// Don't search back past half the chunk; a cut that early would make
	// chunks drift far below the target size.
	limit := start + c.chunkSize/2

	for i := end; i > limit; i-- {
		switch runes[i-1] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	for i := end; i > limit; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\t' {
			return i
		}
	}
	return end
}
