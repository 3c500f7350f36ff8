package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"learnly/internal/domain"
)

const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"

	fileMagic   = "LRNV"
	fileVersion = uint32(1)
)

// IntegrityError reports a persisted index whose vector store and metadata
// log disagree. It is fatal at load time; proceeding would silently return
// wrong chunks for matched vectors.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return "index integrity: " + e.Reason }

// Flat is a brute-force squared-L2 vector index with a parallel metadata
// log. Vectors and metadata are appended in lockstep: position i in the
// vector slab always corresponds to metadata entry i. Add and Persist are
// serialized; Search takes a read lock and may run concurrently.
type Flat struct {
	mu        sync.RWMutex
	dir       string
	model     string
	dimension int
	vectors   []float32 // flat slab, count*dimension values
	meta      []domain.ChunkMeta
	hashes    map[string]struct{}
}

// Open loads the persisted index from dir, or returns a fresh empty index
// when nothing has been persisted yet. A persisted index built with a
// different embedding model or dimension is an integrity error: mixing
// embedding models in one index is undefined behaviour.
func Open(dir, model string, dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	f := &Flat{
		dir:       dir,
		model:     model,
		dimension: dimension,
		hashes:    make(map[string]struct{}),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Count returns the number of stored vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.meta)
}

// HasFile reports whether any stored chunk came from a file with the given
// content hash.
func (f *Flat) HasFile(_ context.Context, hash string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.hashes[hash]
	return ok, nil
}

// Add appends vectors and their metadata in lockstep. The call either
// appends everything or nothing.
func (f *Flat) Add(_ context.Context, vectors [][]float32, meta []domain.ChunkMeta) error {
	if len(vectors) != len(meta) {
		return fmt.Errorf("vectors (%d) and metadata (%d) length mismatch", len(vectors), len(meta))
	}
	for _, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), f.dimension)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range vectors {
		f.vectors = append(f.vectors, v...)
		f.meta = append(f.meta, meta[i])
		f.hashes[meta[i].FileHash] = struct{}{}
	}
	return nil
}

// Search returns up to k stored chunks ordered by ascending squared-L2
// distance to the query vector. An empty index yields an empty result set.
func (f *Flat) Search(_ context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != f.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), f.dimension)
	}
	if k <= 0 {
		k = 5
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.meta)
	if n == 0 {
		return nil, nil
	}
	type hit struct {
		pos      int
		distance float32
	}
	hits := make([]hit, n)
	for i := 0; i < n; i++ {
		hits[i] = hit{pos: i, distance: l2Squared(vector, f.vectors[i*f.dimension:(i+1)*f.dimension])}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		// Insertion order breaks ties so persisted and reloaded indexes
		// rank identically.
		return hits[i].pos < hits[j].pos
	})
	if k > n {
		k = n
	}
	out := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		out[i] = domain.ScoredChunk{Meta: f.meta[hits[i].pos], Distance: hits[i].distance}
	}
	return out, nil
}

// Persist writes the vector slab and metadata log to disk. Both files are
// written to temporary paths and renamed so a crash mid-write never leaves
// a mismatched pair behind.
func (f *Flat) Persist() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	if err := f.writeVectors(filepath.Join(f.dir, vectorsFile)); err != nil {
		return err
	}
	return f.writeMetadata(filepath.Join(f.dir, metadataFile))
}

func (f *Flat) writeVectors(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := writeVectorHeader(file, f.model, f.dimension, len(f.meta)); err != nil {
		file.Close()
		return err
	}
	if err := binary.Write(file, binary.LittleEndian, f.vectors); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *Flat) writeMetadata(path string) error {
	meta := f.meta
	if meta == nil {
		meta = []domain.ChunkMeta{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *Flat) load() error {
	vecPath := filepath.Join(f.dir, vectorsFile)
	metaPath := filepath.Join(f.dir, metadataFile)

	_, vecErr := os.Stat(vecPath)
	_, metaErr := os.Stat(metaPath)
	if errors.Is(vecErr, os.ErrNotExist) && errors.Is(metaErr, os.ErrNotExist) {
		// First run: fresh empty index.
		return nil
	}
	if errors.Is(vecErr, os.ErrNotExist) != errors.Is(metaErr, os.ErrNotExist) {
		return &IntegrityError{Reason: "vector store and metadata log must exist together"}
	}

	file, err := os.Open(vecPath)
	if err != nil {
		return err
	}
	defer file.Close()
	model, dim, count, err := readVectorHeader(file)
	if err != nil {
		return err
	}
	if model != f.model {
		return &IntegrityError{Reason: fmt.Sprintf("index built with embedding model %q, configured model is %q", model, f.model)}
	}
	if dim != f.dimension {
		return &IntegrityError{Reason: fmt.Sprintf("index dimension %d, configured dimension %d", dim, f.dimension)}
	}
	vectors := make([]float32, count*dim)
	if err := binary.Read(file, binary.LittleEndian, vectors); err != nil {
		return &IntegrityError{Reason: "vector store truncated: " + err.Error()}
	}

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return err
	}
	var meta []domain.ChunkMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return &IntegrityError{Reason: "metadata log unreadable: " + err.Error()}
	}
	if len(meta) != count {
		return &IntegrityError{Reason: fmt.Sprintf("vector store has %d entries, metadata log has %d", count, len(meta))}
	}

	f.vectors = vectors
	f.meta = meta
	for _, m := range meta {
		f.hashes[m.FileHash] = struct{}{}
	}
	return nil
}

func writeVectorHeader(w io.Writer, model string, dim, count int) error {
	if _, err := w.Write([]byte(fileMagic)); err != nil {
		return err
	}
	for _, v := range []uint32{fileVersion, uint32(len(model))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte(model)); err != nil {
		return err
	}
	for _, v := range []uint32{uint32(dim), uint32(count)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readVectorHeader(r io.Reader) (model string, dim, count int, err error) {
	magic := make([]byte, len(fileMagic))
	if _, err = io.ReadFull(r, magic); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	if string(magic) != fileMagic {
		return "", 0, 0, &IntegrityError{Reason: "not a vector store file"}
	}
	var version, modelLen uint32
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	if version != fileVersion {
		return "", 0, 0, &IntegrityError{Reason: fmt.Sprintf("unsupported vector store version %d", version)}
	}
	if err = binary.Read(r, binary.LittleEndian, &modelLen); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	name := make([]byte, modelLen)
	if _, err = io.ReadFull(r, name); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	var d, c uint32
	if err = binary.Read(r, binary.LittleEndian, &d); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	if err = binary.Read(r, binary.LittleEndian, &c); err != nil {
		return "", 0, 0, &IntegrityError{Reason: "vector store header unreadable"}
	}
	return string(name), int(d), int(c), nil
}

func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
