package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore persists embeddings in the chunk_embeddings table using the
// pgvector extension. Cosine similarity is computed in SQL as 1 - cosine
// distance, so scores line up with the in-memory store.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool, dim int) *PostgresStore {
	return &PostgresStore{pool: pool, dim: dim}
}

func (s *PostgresStore) Put(ctx context.Context, chunkID string, vec []float32) error {
	if err := checkDimension(s.dim, vec); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chunk_embeddings (chunk_id, embedding)
		 VALUES ($1, $2)
		 ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		chunkID,
		pgvector.NewVector(vec),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, query []float32, topK int) ([]Match, error) {
	if err := checkDimension(s.dim, query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT chunk_id, 1.0 - (embedding <=> $1) AS score
		 FROM chunk_embeddings
		 ORDER BY score DESC, seq ASC
		 LIMIT $2`,
		pgvector.NewVector(query),
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		var score float64
		if err := rows.Scan(&m.ChunkID, &score); err != nil {
			return nil, err
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, chunkID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunk_embeddings WHERE chunk_id = $1`, chunkID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMany(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM chunk_embeddings WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

func (s *PostgresStore) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT chunk_id FROM chunk_embeddings ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Dimension() int {
	return s.dim
}
