// Package vector persists chunk-id keyed embeddings and answers
// nearest-neighbor queries. The similarity metric is cosine similarity
// everywhere; results are ordered by descending score with ties broken by
// insertion order for determinism.
package vector

import (
	"context"
	"fmt"

	"github.com/synapse-hq/synapse/internal/domain"
)

// Match is one similarity search hit.
type Match struct {
	ChunkID string
	Score   float32
}

// Store is the vector index contract. A store has one fixed dimension for
// its whole lifetime; vectors of any other length are rejected outright.
type Store interface {
	// Put stores or replaces the vector for a chunk id.
	Put(ctx context.Context, chunkID string, vec []float32) error

	// Search returns at most topK matches ordered by descending cosine
	// similarity. It never returns a chunk id without a stored vector.
	Search(ctx context.Context, query []float32, topK int) ([]Match, error)

	// Delete removes the vector for a chunk id. Deleting an absent id is
	// not an error.
	Delete(ctx context.Context, chunkID string) error

	// DeleteMany removes vectors for all the given chunk ids.
	DeleteMany(ctx context.Context, chunkIDs []string) error

	// ChunkIDs lists every chunk id with a stored vector, for
	// consistency checks against the graph store.
	ChunkIDs(ctx context.Context) ([]string, error)

	// Dimension is the fixed vector length of this store.
	Dimension() int
}

func checkDimension(storeDim int, vec []float32) error {
	if len(vec) != storeDim {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			"embedding dimension does not match vector store",
			fmt.Errorf("got %d, store holds %d-dimensional vectors", len(vec), storeDim))
	}
	return nil
}
