package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(paths.New(t.TempDir()), logger.Nop())
}

func TestStore_SearchMissingIndex(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(1, []float32{1, 2}, 5)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_AddAndSearch(t *testing.T) {
	s := newTestStore(t)
	refs := []SourceRef{
		{DocID: 1, Text: "first chunk"},
		{DocID: 1, Text: "second chunk"},
		{DocID: 2, Text: "other doc"},
	}
	vectors := [][]float32{{0, 0}, {1, 0}, {5, 5}}
	require.NoError(t, s.Add(7, refs, vectors))

	results, err := s.Search(7, []float32{0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "second chunk", results[0].Ref.Text)
	assert.Equal(t, "first chunk", results[1].Ref.Text)
	assert.Equal(t, int64(1), results[0].Ref.DocID)
}

func TestStore_AddAppendsInOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(1, []SourceRef{{DocID: 1, Text: "a"}}, [][]float32{{0, 0}}))
	require.NoError(t, s.Add(1, []SourceRef{{DocID: 2, Text: "b"}}, [][]float32{{100, 100}}))

	size, err := s.Size(1)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	results, err := s.Search(1, []float32{100, 100}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Ref.Text)
}

func TestStore_AddLengthMismatch(t *testing.T) {
	s := newTestStore(t)
	err := s.Add(1, []SourceRef{{DocID: 1, Text: "a"}}, [][]float32{{1}, {2}})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestStore_AddRaggedVectors(t *testing.T) {
	s := newTestStore(t)
	refs := []SourceRef{{DocID: 1, Text: "a"}, {DocID: 1, Text: "b"}}
	err := s.Add(1, refs, [][]float32{{1, 2}, {1, 2, 3}})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	layout := paths.New(dir)

	s1 := NewStore(layout, logger.Nop())
	require.NoError(t, s1.Add(3, []SourceRef{{DocID: 9, Text: "persisted"}}, [][]float32{{1, 2, 3}}))

	s2 := NewStore(layout, logger.Nop())
	results, err := s2.Search(3, []float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].Ref.Text)
	assert.Equal(t, int64(9), results[0].Ref.DocID)
}

func TestStore_EmptySearchResultIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(1, []SourceRef{{DocID: 1, Text: "a"}}, [][]float32{{1, 1}}))

	results, err := s.Search(1, []float32{1, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Rebuild(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(1,
		[]SourceRef{{DocID: 1, Text: "old a"}, {DocID: 2, Text: "old b"}},
		[][]float32{{0, 0}, {1, 1}},
	))

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text)), 0}, nil
	}
	docs := []RebuildDoc{{DocID: 2, Chunks: []string{"kept chunk"}}}
	require.NoError(t, s.Rebuild(context.Background(), 1, docs, embed))

	size, err := s.Size(1)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	results, err := s.Search(1, []float32{10, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept chunk", results[0].Ref.Text)
	assert.Equal(t, int64(2), results[0].Ref.DocID)
}

func TestStore_RebuildSkipsFailingDoc(t *testing.T) {
	s := newTestStore(t)

	embed := func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("backend down")
		}
		return []float32{1, 2}, nil
	}
	docs := []RebuildDoc{
		{DocID: 1, Chunks: []string{"bad"}},
		{DocID: 2, Chunks: []string{"good"}},
	}
	require.NoError(t, s.Rebuild(context.Background(), 1, docs, embed))

	results, err := s.Search(1, []float32{1, 2}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Ref.DocID)
}

func TestStore_RebuildToEmptyRemovesIndex(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(1, []SourceRef{{DocID: 1, Text: "a"}}, [][]float32{{1, 1}}))

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 1}, nil
	}
	require.NoError(t, s.Rebuild(context.Background(), 1, nil, embed))

	_, err := s.Search(1, []float32{1, 1}, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	size, err := s.Size(1)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(1, []SourceRef{{DocID: 1, Text: "a"}}, [][]float32{{1, 1}}))
	require.NoError(t, s.Remove(1))

	_, err := s.Search(1, []float32{1, 1}, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_ProjectsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	for p := int64(1); p <= 3; p++ {
		ref := []SourceRef{{DocID: p, Text: fmt.Sprintf("project %d", p)}}
		require.NoError(t, s.Add(p, ref, [][]float32{{float32(p), 0}}))
	}

	results, err := s.Search(2, []float32{2, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "project 2", results[0].Ref.Text)
}
