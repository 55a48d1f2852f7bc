package vectorindex

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// Flat binary index file layout, little-endian throughout:
//
//	magic   [4]byte "MSVI"
//	version uint32
//	dim     uint32
//	count   uint32
//	vectors count*dim float32, row-major
const (
	indexMagic   = "MSVI"
	indexVersion = 1
)

// Persist writes the index vectors to path, creating the parent
// directory if needed. The write goes through a temp file and rename so
// a crash never leaves a truncated index behind.
func (ix *Index) Persist(path string) error {
	if len(ix.vectors) == 0 {
		return faults.New(faults.InputError, "refusing to persist an empty index")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create index directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".msvi-*")
	if err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to create index temp file")
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString(indexMagic); err != nil {
		tmp.Close()
		return faults.Wrap(faults.ProviderError, err, "failed to write index header")
	}
	header := []uint32{indexVersion, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return faults.Wrap(faults.ProviderError, err, "failed to write index header")
		}
	}

	buf := make([]byte, 4)
	for _, vec := range ix.vectors {
		for _, f := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
			if _, err := w.Write(buf); err != nil {
				tmp.Close()
				return faults.Wrap(faults.ProviderError, err, "failed to write index vectors")
			}
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return faults.Wrap(faults.ProviderError, err, "failed to flush index file")
	}
	if err := tmp.Close(); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to close index temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return faults.Wrap(faults.ProviderError, err, "failed to move index into place")
	}

	logger.Info("Vector index persisted", "path", path, "vectors", len(ix.vectors), "dimension", ix.dim)
	return nil
}

// Restore loads vectors from path, replacing the index contents. The
// stored dimension must match the live embedding provider's dimension;
// a mismatch is a hard integrity failure because searches against such
// an index would return garbage row ids.
func (ix *Index) Restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return faults.Wrap(faults.NotFound, err, "index file missing")
		}
		return faults.Wrap(faults.ProviderError, err, "failed to open index file")
	}
	defer f.Close()

	r := bufio.NewReader(f)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return faults.Wrap(faults.IntegrityError, err, "index file truncated")
	}
	if string(magic) != indexMagic {
		return faults.New(faults.IntegrityError, "not an index file: bad magic %q", magic)
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return faults.Wrap(faults.IntegrityError, err, "index file truncated")
		}
	}
	if version != indexVersion {
		return faults.New(faults.IntegrityError, "unsupported index version %d", version)
	}
	if dim == 0 || count == 0 {
		return faults.New(faults.IntegrityError, "index file declares empty contents")
	}

	if want := ix.embedder.Dimension(); int(dim) != want {
		return faults.New(faults.IntegrityError, "index dimension %d does not match embedding provider dimension %d", dim, want)
	}

	vectors := make([][]float32, count)
	buf := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return faults.Wrap(faults.IntegrityError, err, "index file truncated at vector %d", i)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors[i] = vec
	}

	ix.vectors = vectors
	ix.dim = int(dim)
	logger.Info("Vector index restored", "path", path, "vectors", count, "dimension", dim)
	return nil
}
