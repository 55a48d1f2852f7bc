// Package retrieval assembles the context string handed to the
// generation model, degrading to full-document context whenever the
// index cannot serve a query.
package retrieval

import (
	"context"
	"strings"

	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/vectorindex"
)

// SectionDelimiter separates retrieved chunks inside a context string.
const SectionDelimiter = "\n\n---\n\n"

// BuildContext returns the context for a query plus whether retrieval
// actually contributed. It falls back to concatenating every chunk when
// the index is absent or empty, when search fails, or when every
// returned row id is out of range for the chunk list.
func BuildContext(ctx context.Context, query string, index *vectorindex.Index, chunks []string, k int) (string, bool) {
	if index == nil || index.Count() == 0 {
		logger.Debug("Retrieval unavailable, using full text as context")
		return fullText(chunks), false
	}

	matches, err := index.Search(ctx, query, k)
	if err != nil {
		logger.Warn("Search failed, using full text as context", "error", err)
		return fullText(chunks), false
	}

	// The index and chunk list can disagree when persisted state is
	// mismatched; drop any row id outside the chunk range.
	var selected []string
	for _, m := range matches {
		if m.RowID < 0 || m.RowID >= len(chunks) {
			logger.Warn("Dropping out-of-range row id from search result", "row_id", m.RowID, "chunks", len(chunks))
			continue
		}
		selected = append(selected, chunks[m.RowID])
	}

	if len(selected) == 0 {
		logger.Debug("No usable search results, using full text as context")
		return fullText(chunks), false
	}

	logger.Debug("Retrieved context", "chunks", len(selected), "k", k)
	return strings.Join(selected, SectionDelimiter), true
}

func fullText(chunks []string) string {
	return strings.Join(chunks, SectionDelimiter)
}
