package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediscan-backend/internal/faults"
)

// stubEmbedder maps known texts to fixed vectors for deterministic
// distance ordering.
type stubEmbedder struct {
	dim  int
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestEmbedder() *stubEmbedder {
	return &stubEmbedder{
		dim: 2,
		vecs: map[string][]float32{
			"alpha": {0, 0},
			"beta":  {1, 0},
			"gamma": {5, 5},
			"query": {0.9, 0},
		},
	}
}

func TestBuildRejectsEmptyChunks(t *testing.T) {
	ix := New(newTestEmbedder())
	err := ix.Build(context.Background(), nil)
	if !faults.Is(err, faults.InputError) {
		t.Errorf("expected InputError, got %v", err)
	}
}

func TestBuildAllOrNothing(t *testing.T) {
	emb := newTestEmbedder()
	ix := New(emb)
	if err := ix.Build(context.Background(), []string{"alpha", "beta"}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	emb.err = errors.New("provider down")
	err := ix.Build(context.Background(), []string{"gamma"})
	if err == nil {
		t.Fatal("build should fail when embedding fails")
	}
	if ix.Count() != 2 {
		t.Errorf("failed build must not disturb existing contents, count = %d", ix.Count())
	}
}

func TestSearchOrderingAndClamp(t *testing.T) {
	ix := New(newTestEmbedder())
	if err := ix.Build(context.Background(), []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// query sits closest to beta, then alpha, then gamma.
	matches, err := ix.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("k beyond count should clamp to all vectors, got %d", len(matches))
	}
	wantOrder := []int{1, 0, 2}
	for i, m := range matches {
		if m.RowID != wantOrder[i] {
			t.Errorf("match %d row = %d, want %d", i, m.RowID, wantOrder[i])
		}
	}
	if matches[0].Distance > matches[1].Distance || matches[1].Distance > matches[2].Distance {
		t.Error("distances must be ascending")
	}
}

func TestSearchEmptyIndexReturnsEmpty(t *testing.T) {
	ix := New(newTestEmbedder())
	matches, err := ix.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("empty index search should not error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty result, got %d matches", len(matches))
	}
}

func TestSearchInputValidation(t *testing.T) {
	ix := New(newTestEmbedder())
	if _, err := ix.Search(context.Background(), "", 5); !faults.Is(err, faults.InputError) {
		t.Errorf("empty query should be InputError, got %v", err)
	}
	if _, err := ix.Search(context.Background(), "query", 0); !faults.Is(err, faults.InputError) {
		t.Errorf("non-positive k should be InputError, got %v", err)
	}
}

func TestPersistRestoreSearchIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indices", "session.msvi")

	emb := newTestEmbedder()
	ix := New(emb)
	if err := ix.Build(context.Background(), []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	before, err := ix.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if err := ix.Persist(path); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	restored := New(emb)
	if err := restored.Restore(path); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	after, err := restored.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search after restore failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("result sizes differ: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].RowID != after[i].RowID {
			t.Errorf("row order diverged at %d: %d vs %d", i, before[i].RowID, after[i].RowID)
		}
		if before[i].Distance != after[i].Distance {
			t.Errorf("distance diverged at %d: %v vs %v", i, before[i].Distance, after[i].Distance)
		}
	}
}

func TestRestoreDimensionMismatchIsHardFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.msvi")

	ix := New(newTestEmbedder())
	if err := ix.Build(context.Background(), []string{"alpha", "beta"}); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := ix.Persist(path); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	other := New(&stubEmbedder{dim: 7})
	err := other.Restore(path)
	if !faults.Is(err, faults.IntegrityError) {
		t.Errorf("dimension mismatch must be IntegrityError, got %v", err)
	}
	if other.Count() != 0 {
		t.Error("failed restore must not populate the index")
	}
}

func TestRestoreMissingFile(t *testing.T) {
	ix := New(newTestEmbedder())
	err := ix.Restore(filepath.Join(t.TempDir(), "nope.msvi"))
	if !faults.Is(err, faults.NotFound) {
		t.Errorf("missing file should be NotFound, got %v", err)
	}
}

func TestRestoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.msvi")
	if err := os.WriteFile(path, []byte("not an index at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	ix := New(newTestEmbedder())
	if err := ix.Restore(path); !faults.Is(err, faults.IntegrityError) {
		t.Errorf("corrupt file should be IntegrityError, got %v", err)
	}
}

func TestPersistRefusesEmptyIndex(t *testing.T) {
	ix := New(newTestEmbedder())
	err := ix.Persist(filepath.Join(t.TempDir(), "empty.msvi"))
	if !faults.Is(err, faults.InputError) {
		t.Errorf("persisting an empty index should be InputError, got %v", err)
	}
}
