package services

import (
	"context"
	"strings"

	"mediscan-backend/internal/anonymizer"
	"mediscan-backend/internal/chunker"
	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/session"
	"mediscan-backend/internal/vectorindex"
)

// DocumentService runs the ingestion pipeline for an uploaded report:
// extract, anonymize, chunk, index, persist.
type DocumentService struct {
	extractor *PDFExtractor
	chunker   *chunker.Chunker
	embedder  vectorindex.Embedder
	store     *session.Store
}

func NewDocumentService(extractor *PDFExtractor, ch *chunker.Chunker, embedder vectorindex.Embedder, store *session.Store) *DocumentService {
	return &DocumentService{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
	}
}

// ProcessResult reports what the pipeline produced for one upload.
// Indexing can fail while chunking succeeded; analysis still works off
// the chunks, chat requires the index.
type ProcessResult struct {
	Pages   int
	Chunks  int
	Indexed bool
}

// Process runs the full ingestion pipeline for the session's uploaded
// file. A missing embedding provider degrades to chunks-only output
// instead of failing the upload.
func (ds *DocumentService) Process(ctx context.Context, sess *session.Session, filePath string) (*ProcessResult, error) {
	rawPages, err := ds.extractor.ExtractPages(ctx, filePath)
	if err != nil {
		return nil, err
	}

	anonymizedPages := make([]string, len(rawPages))
	for i, page := range rawPages {
		anonymizedPages[i] = anonymizer.Anonymize(page)
	}

	if err := ds.store.SaveExtractedText(sess, rawPages, anonymizedPages); err != nil {
		return nil, err
	}

	fullText := strings.Join(anonymizedPages, session.PageBreak)
	chunks := ds.chunker.Chunk(fullText)
	if len(chunks) == 0 {
		return nil, faults.New(faults.InputError, "document produced no usable text")
	}
	if err := ds.store.SaveChunks(sess, chunks); err != nil {
		return nil, err
	}

	result := &ProcessResult{Pages: len(rawPages), Chunks: len(chunks)}

	if ds.embedder == nil {
		logger.Warn("Embedding provider unavailable, skipping index build", "session_id", sess.ID)
		return result, nil
	}

	index := vectorindex.New(ds.embedder)
	if err := index.Build(ctx, chunks); err != nil {
		logger.Error("Index build failed, continuing without retrieval", "session_id", sess.ID, "error", err)
		return result, nil
	}
	if err := index.Persist(sess.IndexPath); err != nil {
		logger.Error("Index persist failed, continuing without retrieval", "session_id", sess.ID, "error", err)
		return result, nil
	}

	result.Indexed = true
	logger.Info("Document processed", "session_id", sess.ID, "pages", result.Pages, "chunks", result.Chunks)
	return result, nil
}

// LoadIndex restores the session's persisted index, or reports why it
// cannot be used.
func (ds *DocumentService) LoadIndex(sess *session.Session) (*vectorindex.Index, error) {
	if ds.embedder == nil {
		return nil, faults.New(faults.DependencyUnavailable, "embedding provider unavailable")
	}
	index := vectorindex.New(ds.embedder)
	if err := index.Restore(sess.IndexPath); err != nil {
		return nil, err
	}
	return index, nil
}
