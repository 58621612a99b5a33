package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/synapse/internal/domain"
)

func TestMemoryStore_SearchOrdersByDescendingScore(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chunk-far", []float32{0, 1, 0}))
	require.NoError(t, s.Put(ctx, "chunk-near", []float32{1, 0.1, 0}))
	require.NoError(t, s.Put(ctx, "chunk-exact", []float32{1, 0, 0}))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "chunk-exact", matches[0].ChunkID)
	assert.Equal(t, "chunk-near", matches[1].ChunkID)
	assert.Equal(t, "chunk-far", matches[2].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
	assert.Greater(t, matches[1].Score, matches[2].Score)
}

func TestMemoryStore_TiesBreakByInsertionOrder(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	// identical vectors score identically against any query
	require.NoError(t, s.Put(ctx, "second-alphabetically", []float32{1, 1}))
	require.NoError(t, s.Put(ctx, "first-alphabetically", []float32{1, 1}))

	matches, err := s.Search(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "second-alphabetically", matches[0].ChunkID)
	assert.Equal(t, "first-alphabetically", matches[1].ChunkID)
}

func TestMemoryStore_TopKTruncates(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []float32{1, 0}))
	require.NoError(t, s.Put(ctx, "b", []float32{0.9, 0.1}))
	require.NoError(t, s.Put(ctx, "c", []float32{0, 1}))

	matches, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ChunkID)
	assert.Equal(t, "b", matches[1].ChunkID)

	matches, err = s.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStore_DimensionMismatchFailsFast(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	err := s.Put(ctx, "chunk", []float32{1, 0})
	require.Error(t, err)
	var derr *domain.DomainError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeConfiguration, derr.Code)

	_, err = s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.Error(t, err)
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeConfiguration, derr.Code)
}

func TestMemoryStore_PutReplacesAndKeepsInsertionSeq(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []float32{0, 1}))
	require.NoError(t, s.Put(ctx, "b", []float32{1, 0}))
	// replacing a vector must not demote the id behind later inserts on ties
	require.NoError(t, s.Put(ctx, "a", []float32{1, 0}))

	matches, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ChunkID)
	assert.Equal(t, "b", matches[1].ChunkID)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []float32{1, 0}))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	matches, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStore_DeleteMany(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []float32{1, 0}))
	require.NoError(t, s.Put(ctx, "b", []float32{0, 1}))
	require.NoError(t, s.Put(ctx, "c", []float32{1, 1}))

	require.NoError(t, s.DeleteMany(ctx, []string{"a", "c", "missing"}))

	ids, err := s.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestMemoryStore_ChunkIDsSorted(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "zeta", []float32{1, 0}))
	require.NoError(t, s.Put(ctx, "alpha", []float32{0, 1}))

	ids, err := s.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}
