// Package vectorindex owns the per-document similarity index: it embeds
// an ordered chunk sequence, answers L2 nearest-neighbor queries, and
// round-trips its vectors through a flat binary file so a session can be
// resumed after a process restart.
package vectorindex

import (
	"context"
	"sort"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// Embedder is the embedding provider capability the index depends on.
// The dimension is fixed for the life of the process.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Index maps row ids to embedding vectors. Row id i always corresponds
// to the i-th chunk of the sequence the index was built from; the chunk
// sequence itself is persisted separately by the session store.
type Index struct {
	embedder Embedder
	vectors  [][]float32
	dim      int
}

// Match is one search hit, ascending by distance.
type Match struct {
	RowID    int
	Distance float32
}

func New(embedder Embedder) *Index {
	return &Index{
		embedder: embedder,
		dim:      embedder.Dimension(),
	}
}

// Count returns the number of indexed vectors.
func (ix *Index) Count() int {
	return len(ix.vectors)
}

// Dimension returns the vector dimension the index was built or restored
// with, or the provider dimension before any build.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Build embeds every chunk and replaces the index contents. It is
// all-or-nothing: on any embedding failure or dimension mismatch the
// previous contents are kept and the error reports why.
func (ix *Index) Build(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return faults.New(faults.InputError, "no chunks to index")
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return err
	}

	want := ix.embedder.Dimension()
	for i, vec := range vectors {
		if len(vec) != want {
			return faults.New(faults.IntegrityError, "embedding %d has dimension %d, provider reports %d", i, len(vec), want)
		}
	}

	ix.vectors = vectors
	ix.dim = want
	logger.Info("Vector index built", "chunks", len(chunks), "dimension", want)
	return nil
}

// Search embeds the query and returns up to k nearest rows by ascending
// L2 distance. k is clamped to the vector count. An empty index returns
// an empty result, not an error.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if query == "" {
		return nil, faults.New(faults.InputError, "empty search query")
	}
	if k <= 0 {
		return nil, faults.New(faults.InputError, "k must be positive, got %d", k)
	}
	if len(ix.vectors) == 0 {
		return []Match{}, nil
	}

	queryVec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(queryVec) != ix.dim {
		return nil, faults.New(faults.IntegrityError, "query embedding dimension %d does not match index dimension %d", len(queryVec), ix.dim)
	}

	matches := make([]Match, len(ix.vectors))
	for i, vec := range ix.vectors {
		matches[i] = Match{RowID: i, Distance: l2Squared(queryVec, vec)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Squared L2 keeps the same ordering as true L2 without the sqrt.
func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
