// Package vectorindex implements the per-project vector index store: an
// append-only flat L2 index file plus a position-to-source mapping.
//
// The index has no delete primitive. Removing vectors means destroying the
// files and rebuilding from the project's remaining documents; positional
// lookup keys would otherwise shift under the mapping.
package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

// SourceRef ties a vector position back to its source: the owning document
// and the embedded text (a chunk, or a figure's synthesized analysis).
type SourceRef struct {
	DocID int64  `json:"doc_id"`
	Text  string `json:"text"`
}

// Result is one search hit resolved through the mapping.
type Result struct {
	Ref      SourceRef
	Distance float32
}

// EmbedFunc produces a vector for text. Supplied by callers so the store
// stays independent of the model backend.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// RebuildDoc is one document's chunk sequence for a rebuild pass.
type RebuildDoc struct {
	DocID  int64
	Chunks []string
}

// Store manages one index per project on disk. Writers take the project's
// exclusive lock; searches share it. The invariant index size == mapping
// size is enforced on load and on every append.
type Store struct {
	layout *paths.Layout
	log    logger.Logger

	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
}

// NewStore creates a Store over the given data layout.
func NewStore(layout *paths.Layout, log logger.Logger) *Store {
	return &Store{
		layout: layout,
		log:    log.Named("vectorindex"),
		locks:  make(map[int64]*sync.RWMutex),
	}
}

func (s *Store) lock(projectID int64) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[projectID] = l
	}
	return l
}

// Add appends vectors with their source refs. Vector i lands at position
// oldSize+i. The files are durably written before Add returns.
func (s *Store) Add(projectID int64, refs []SourceRef, vectors [][]float32) error {
	if len(refs) != len(vectors) {
		return errs.Validationf("refs and vectors length mismatch: %d != %d", len(refs), len(vectors))
	}
	if len(refs) == 0 {
		return nil
	}

	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()

	idx, mapping, err := s.load(projectID)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if idx == nil {
		idx = NewFlat()
		mapping = nil
	}

	if err := idx.Append(vectors...); err != nil {
		return errs.Validationf("append vectors: %v", err)
	}
	mapping = append(mapping, refs...)

	return s.save(projectID, idx, mapping)
}

// Search returns the k nearest sources for the query vector. A project
// with no index yet yields ErrNotFound, which callers must distinguish
// from an empty result on a small index.
func (s *Store) Search(projectID int64, query []float32, k int) ([]Result, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	idx, mapping, err := s.load(projectID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFoundf("no vector index for project %d", projectID)
		}
		return nil, err
	}

	matches := idx.Search(query, k)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{Ref: mapping[m.Position], Distance: m.Distance})
	}
	return results, nil
}

// Size returns the number of indexed vectors, zero if no index exists.
func (s *Store) Size(projectID int64) (int, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	idx, _, err := s.load(projectID)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return idx.Len(), nil
}

// Rebuild discards the project's index and reconstructs it by re-embedding
// every supplied document's chunks in document order. The exclusive lock is
// held for the whole pass, so concurrent adds and searches wait it out.
// A document whose embedding fails is logged and skipped, as is one with no
// chunks; the rebuild itself carries on.
func (s *Store) Rebuild(ctx context.Context, projectID int64, docs []RebuildDoc, embed EmbedFunc) error {
	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()

	if err := s.removeFiles(projectID); err != nil {
		return err
	}

	if len(docs) == 0 {
		return nil
	}

	idx := NewFlat()
	var mapping []SourceRef
	for _, doc := range docs {
		vectors := make([][]float32, 0, len(doc.Chunks))
		failed := false
		for _, chunk := range doc.Chunks {
			vec, err := embed(ctx, chunk)
			if err != nil {
				s.log.Error("re-embedding document failed, skipping",
					logger.Int64("docId", doc.DocID),
					logger.Error(err),
				)
				failed = true
				break
			}
			vectors = append(vectors, vec)
		}
		if failed || len(vectors) == 0 {
			continue
		}
		if err := idx.Append(vectors...); err != nil {
			return fmt.Errorf("append rebuilt vectors: %w", err)
		}
		for _, chunk := range doc.Chunks {
			mapping = append(mapping, SourceRef{DocID: doc.DocID, Text: chunk})
		}
	}

	if idx.Len() == 0 {
		// Nothing embeddable remained; leave the project index absent.
		return nil
	}
	return s.save(projectID, idx, mapping)
}

// Remove deletes the project's index files. Used when the project itself
// goes away.
func (s *Store) Remove(projectID int64) error {
	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()
	return s.removeFiles(projectID)
}

func (s *Store) removeFiles(projectID int64) error {
	for _, p := range []string{s.layout.IndexPath(projectID), s.layout.MappingPath(projectID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// index file layout: uint32 dimension, uint32 count, then count*dimension
// little-endian float32 values.

func (s *Store) load(projectID int64) (*Flat, []SourceRef, error) {
	data, err := os.ReadFile(s.layout.IndexPath(projectID))
	if err != nil {
		return nil, nil, err
	}
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("index file for project %d is truncated", projectID)
	}

	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	count := int(binary.LittleEndian.Uint32(data[4:8]))
	if dim <= 0 || len(data) != 8+4*dim*count {
		return nil, nil, fmt.Errorf("index file for project %d is corrupt", projectID)
	}

	idx := &Flat{dim: dim, vectors: make([][]float32, 0, count)}
	off := 8
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			vec[j] = math.Float32frombits(bits)
			off += 4
		}
		idx.vectors = append(idx.vectors, vec)
	}

	mapData, err := os.ReadFile(s.layout.MappingPath(projectID))
	if err != nil {
		return nil, nil, err
	}
	var mapping []SourceRef
	if err := json.Unmarshal(mapData, &mapping); err != nil {
		return nil, nil, fmt.Errorf("decode mapping for project %d: %w", projectID, err)
	}

	if len(mapping) != idx.Len() {
		return nil, nil, fmt.Errorf("project %d index/mapping size mismatch: %d != %d",
			projectID, idx.Len(), len(mapping))
	}
	return idx, mapping, nil
}

func (s *Store) save(projectID int64, idx *Flat, mapping []SourceRef) error {
	if _, err := s.layout.EnsureProjectDir(projectID); err != nil {
		return err
	}

	buf := make([]byte, 8, 8+4*idx.dim*idx.Len())
	binary.LittleEndian.PutUint32(buf[0:4], uint32(idx.dim))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(idx.Len()))
	var scratch [4]byte
	for _, vec := range idx.vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			buf = append(buf, scratch[:]...)
		}
	}

	mapData, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	if err := writeDurable(s.layout.IndexPath(projectID), buf); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeDurable(s.layout.MappingPath(projectID), mapData); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}

// writeDurable writes via a temp file, fsyncs and renames into place.
func writeDurable(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
