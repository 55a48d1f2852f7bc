// Package chunker splits normalized report text into bounded retrieval
// units. Chunk order is authoritative: the position of a chunk in the
// returned sequence is its row id in the vector index built from it.
package chunker

import (
	"regexp"
	"strings"
)

type Chunker struct {
	maxChunkSize  int
	overlap       int
	minChunkSize  int
	sentenceRegex *regexp.Regexp
	blankRunRegex *regexp.Regexp
}

func New(maxChunkSize, overlap, minChunkSize int) *Chunker {
	return &Chunker{
		maxChunkSize:  maxChunkSize,
		overlap:       overlap,
		minChunkSize:  minChunkSize,
		sentenceRegex: regexp.MustCompile(`[.!?]+[\s]+`),
		blankRunRegex: regexp.MustCompile(`\n{3,}`),
	}
}

// Chunk splits text into ordered chunks within the character budget by
// cutting at paragraph boundaries, then sentence boundaries, then a hard
// cut. With zero overlap the chunks are contiguous slices of the
// normalized text: concatenating them reproduces it exactly. A positive
// overlap prepends the tail of each chunk to its successor for retrieval
// continuity, trading away that reconstruction property.
func (c *Chunker) Chunk(text string) []string {
	text = c.normalize(text)
	if text == "" {
		return nil
	}

	var slices []string
	rest := text
	for len(rest) > c.maxChunkSize {
		cut := c.cutPoint(rest)
		slices = append(slices, rest[:cut])
		rest = rest[cut:]
	}
	// The final remainder may fall below minChunkSize; it still becomes
	// its own chunk so no content is lost.
	slices = append(slices, rest)

	if c.overlap <= 0 {
		return slices
	}
	chunks := make([]string, len(slices))
	chunks[0] = slices[0]
	for i := 1; i < len(slices); i++ {
		chunks[i] = c.overlapTail(slices[i-1]) + slices[i]
	}
	return chunks
}

// normalize collapses runs of blank lines and strips surrounding
// whitespace so boundary detection sees a consistent shape.
func (c *Chunker) normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = c.blankRunRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// cutPoint picks where to end the next chunk: after the last paragraph
// break inside the budget, else after the last sentence terminator, else
// at the budget itself. Cuts before minChunkSize are never taken.
func (c *Chunker) cutPoint(text string) int {
	window := text[:c.maxChunkSize]

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 && idx+2 >= c.minChunkSize {
		return idx + 2
	}

	boundaries := c.sentenceRegex.FindAllStringIndex(window, -1)
	for i := len(boundaries) - 1; i >= 0; i-- {
		if boundaries[i][1] >= c.minChunkSize {
			return boundaries[i][1]
		}
	}

	return c.maxChunkSize
}

// overlapTail returns the trailing portion of a chunk to carry into the
// next one, starting at a sentence boundary when one fits.
func (c *Chunker) overlapTail(text string) string {
	if len(text) <= c.overlap {
		return text
	}

	tail := text[len(text)-c.overlap:]
	if loc := c.sentenceRegex.FindStringIndex(tail); loc != nil && loc[1] < len(tail) {
		return tail[loc[1]:]
	}
	return tail
}
