// Package session tracks per-document processing state: the uploaded
// file's derived artifacts on disk, the in-memory chat state, and the
// paths the pipeline persists chunks and index data to.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediscan-backend/internal/chat"
	"mediscan-backend/internal/config"
	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// Separators used in persisted artifacts. The chunk separator is chosen
// to never occur in report content so splitting round-trips exactly.
const (
	ChunkSeparator = "\n<--MEDISCAN_CHUNK_SEPARATOR-->\n"
	PageBreak      = "\n--- PAGE BREAK ---\n"
)

// Session is one document-processing session. Chunks, index and chat
// state all belong to it and are discarded together on reset.
type Session struct {
	ID       string
	FileName string

	RawTextPath        string
	AnonymizedTextPath string
	ChunksPath         string
	IndexPath          string
	CSVPath            string
	XLSXPath           string

	Chat *chat.Session

	CreatedAt  time.Time
	LastActive time.Time

	mu       sync.Mutex
	analysis string
}

// SetAnalysis stores the latest generated analysis text. Safe for
// concurrent analyze requests on the same session.
func (s *Session) SetAnalysis(text string) {
	s.mu.Lock()
	s.analysis = text
	s.mu.Unlock()
}

// Analysis returns the most recently stored analysis text.
func (s *Session) Analysis() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      *config.Config
}

func NewStore(cfg *config.Config) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
	}
}

// Create registers a new session for an uploaded file and derives all
// artifact paths from the session id and file name.
func (s *Store) Create(fileName string) *Session {
	id := uuid.NewString()
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	prefix := id + "_" + base

	now := time.Now()
	sess := &Session{
		ID:                 id,
		FileName:           fileName,
		RawTextPath:        filepath.Join(s.cfg.ExtractedTextsDir, prefix+"_raw.txt"),
		AnonymizedTextPath: filepath.Join(s.cfg.ExtractedTextsDir, prefix+"_anonymized.txt"),
		ChunksPath:         filepath.Join(s.cfg.ExtractedTextsDir, prefix+"_chunks.txt"),
		IndexPath:          filepath.Join(s.cfg.IndicesDir, id+".msvi"),
		CSVPath:            filepath.Join(s.cfg.TablesDir, prefix+"_table.csv"),
		XLSXPath:           filepath.Join(s.cfg.TablesDir, prefix+"_table.xlsx"),
		Chat:               chat.NewSession(),
		CreatedAt:          now,
		LastActive:         now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Info("Session created", "session_id", id, "file", fileName)
	return sess
}

// Get returns the session and refreshes its activity timestamp.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, faults.New(faults.NotFound, "session not found")
	}
	sess.LastActive = time.Now()
	return sess, nil
}

// Delete removes the session and every artifact it owns on disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return faults.New(faults.NotFound, "session not found")
	}

	removeArtifacts(sess)
	logger.Info("Session deleted", "session_id", id)
	return nil
}

// Cleanup drops every session idle longer than ttl and returns how many
// were removed.
func (s *Store) Cleanup(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		removeArtifacts(sess)
		logger.Info("Expired session cleaned up", "session_id", sess.ID, "idle_since", sess.LastActive)
	}
	return len(expired)
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func removeArtifacts(sess *Session) {
	for _, path := range []string{
		sess.RawTextPath, sess.AnonymizedTextPath, sess.ChunksPath,
		sess.IndexPath, sess.CSVPath, sess.XLSXPath,
	} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove session artifact", "path", path, "error", err)
		}
	}
}

// SaveExtractedText writes the raw and anonymized page texts, joined
// with the page-break marker.
func (s *Store) SaveExtractedText(sess *Session, rawPages, anonymizedPages []string) error {
	if err := os.MkdirAll(s.cfg.ExtractedTextsDir, 0o755); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create extracted-texts directory")
	}
	if err := os.WriteFile(sess.RawTextPath, []byte(strings.Join(rawPages, PageBreak)), 0o644); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to save raw text")
	}
	if err := os.WriteFile(sess.AnonymizedTextPath, []byte(strings.Join(anonymizedPages, PageBreak)), 0o644); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to save anonymized text")
	}
	return nil
}

// SaveChunks serializes the ordered chunk sequence with the separator
// token.
func (s *Store) SaveChunks(sess *Session, chunks []string) error {
	if len(chunks) == 0 {
		return faults.New(faults.InputError, "no chunks to save")
	}
	if err := os.MkdirAll(filepath.Dir(sess.ChunksPath), 0o755); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create chunks directory")
	}
	if err := os.WriteFile(sess.ChunksPath, []byte(strings.Join(chunks, ChunkSeparator)), 0o644); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to save chunks")
	}
	return nil
}

// LoadChunks restores the chunk sequence, dropping whitespace-only
// entries the same way the save path never produces them.
func (s *Store) LoadChunks(sess *Session) ([]string, error) {
	data, err := os.ReadFile(sess.ChunksPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.Wrap(faults.NotFound, err, "chunks file missing, re-process the document")
		}
		return nil, faults.Wrap(faults.ProviderError, err, "failed to read chunks")
	}

	parts := strings.Split(string(data), ChunkSeparator)
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	if len(chunks) == 0 {
		return nil, faults.New(faults.IntegrityError, "chunks file is empty")
	}
	return chunks, nil
}
