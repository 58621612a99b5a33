package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/pagination"
)

// PostgresStore is the production graph backend. The property graph maps onto
// relational tables: documents, chunks (CONTAINS via document_id) and
// entities joined to chunks through the mentions table (MENTIONS).
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type postgresTx struct {
	tx pgx.Tx
}

var _ Tx = (*postgresTx)(nil)

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (t *postgresTx) PutDocument(ctx context.Context, doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO documents (id, source, metadata, length, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			metadata = EXCLUDED.metadata,
			length = EXCLUDED.length`,
		doc.ID, doc.Source, doc.Metadata, doc.Length, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (t *postgresTx) PutChunk(ctx context.Context, chunk *domain.Chunk) error {
	if err := domain.ValidateChunk(chunk); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO chunks (id, document_id, chunk_index, content, start_offset, end_offset)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset`,
		chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.Start, chunk.End,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (t *postgresTx) PutEntityMention(ctx context.Context, em *domain.EntityMention) error {
	if !domain.ValidEntityType(em.Entity.Type) {
		return domain.ErrInvalidEntityType
	}

	entityID := em.Entity.ID
	if entityID == "" {
		entityID = uuid.NewString()
	}

	// The unique (normalized, type) index makes concurrent upserts converge
	// on one entity row; DO UPDATE lets RETURNING yield the surviving id.
	var resolvedID string
	err := t.tx.QueryRow(ctx,
		`INSERT INTO entities (id, name, type, normalized)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (normalized, type) DO UPDATE SET name = entities.name
		 RETURNING id`,
		entityID, em.Entity.Name, string(em.Entity.Type), em.Entity.Normalized,
	).Scan(&resolvedID)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO mentions (entity_id, chunk_id, start_offset, end_offset)
		 VALUES ($1, $2, $3, $4)`,
		resolvedID, em.ChunkID, em.Start, em.End,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mention: %w", err)
	}
	return nil
}

func (t *postgresTx) DeleteDocument(ctx context.Context, documentID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	// chunks and mentions cascade; entities without remaining mentions go too
	_, err = t.tx.Exec(ctx,
		`DELETE FROM entities e
		 WHERE NOT EXISTS (SELECT 1 FROM mentions m WHERE m.entity_id = e.id)`)
	if err != nil {
		return fmt.Errorf("failed to prune orphan entities: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, metadata, length, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Source, &doc.Metadata, &doc.Length, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) DocumentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, cursor string, limit int) ([]*domain.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT id, source, metadata, length, created_at FROM documents`
	args := []any{}
	if decoded != nil {
		query += ` WHERE (created_at, id) > ($1, $2)`
		args = append(args, decoded.Timestamp, decoded.LastID)
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0, limit)
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Metadata, &doc.Length, &doc.CreatedAt); err != nil {
			return nil, "", err
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := pagination.CreateNextCursor(docs, limit,
		func(d *domain.Document) string { return d.ID },
		func(d *domain.Document) time.Time { return d.CreatedAt },
	)
	return docs, next, nil
}

func (s *PostgresStore) ChunksByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	exists, err := s.DocumentExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, content, start_offset, end_offset
		 FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *PostgresStore) ChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return []*domain.Chunk{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.content, c.start_offset, c.end_offset
		 FROM chunks c
		 JOIN unnest($1::text[]) WITH ORDINALITY AS want(id, ord) ON want.id = c.id
		 ORDER BY want.ord`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *PostgresStore) EntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error) {
	exists, err := s.DocumentExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT e.id, e.name, e.type, e.normalized
		 FROM entities e
		 JOIN mentions m ON m.entity_id = e.id
		 JOIN chunks c ON c.id = m.chunk_id
		 WHERE c.document_id = $1
		 ORDER BY e.type, e.normalized`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*domain.Entity
	for rows.Next() {
		var e domain.Entity
		var entityType string
		if err := rows.Scan(&e.ID, &e.Name, &entityType, &e.Normalized); err != nil {
			return nil, err
		}
		e.Type = domain.EntityType(entityType)
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

func (s *PostgresStore) ChunksMentioning(ctx context.Context, normalized string, entityType domain.EntityType, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT c.id, c.document_id, c.chunk_index, c.content, c.start_offset, c.end_offset
		 FROM chunks c
		 JOIN mentions m ON m.chunk_id = c.id
		 JOIN entities e ON e.id = m.entity_id
		 WHERE e.normalized = $1 AND e.type = $2
		 ORDER BY c.id
		 LIMIT $3`,
		normalized, string(entityType), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentioning chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *PostgresStore) Traverse(ctx context.Context, startID string, rel Relationship, maxHops int) ([]string, error) {
	if maxHops < 1 {
		return nil, domain.ErrInvalidTraversalHops
	}

	var edgeSQL string
	switch rel {
	case RelContains:
		edgeSQL = `SELECT document_id AS a, id AS b FROM chunks`
	case RelMentions:
		edgeSQL = `SELECT entity_id::text AS a, chunk_id AS b FROM mentions`
	case RelAny:
		edgeSQL = `SELECT document_id AS a, id AS b FROM chunks
			UNION ALL
			SELECT entity_id::text AS a, chunk_id AS b FROM mentions`
	default:
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration,
			fmt.Sprintf("unknown relationship: %s", rel))
	}

	// Breadth-bounded walk over the undirected edge set. The UNION in the
	// recursive term dedupes (node, depth) pairs, and depth < maxHops
	// bounds the recursion.
	query := fmt.Sprintf(`
		WITH RECURSIVE edges AS (%s),
		und AS (
			SELECT a, b FROM edges
			UNION
			SELECT b, a FROM edges
		),
		walk AS (
			SELECT $1::text AS node, 0 AS depth
			UNION
			SELECT u.b, w.depth + 1
			FROM walk w
			JOIN und u ON u.a = w.node
			WHERE w.depth < $2
		)
		SELECT DISTINCT node FROM walk WHERE node <> $1 ORDER BY node`,
		edgeSQL,
	)

	rows, err := s.pool.Query(ctx, query, startID, maxHops)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse graph: %w", err)
	}
	defer rows.Close()

	var reached []string
	for rows.Next() {
		var node string
		if err := rows.Scan(&node); err != nil {
			return nil, err
		}
		reached = append(reached, node)
	}
	return reached, rows.Err()
}

func (s *PostgresStore) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
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

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{EntitiesByType: make(map[domain.EntityType]int)}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM entities),
			(SELECT COUNT(*) FROM mentions)`,
	).Scan(&stats.Documents, &stats.Chunks, &stats.Entities, &stats.MentionsEdges)
	if err != nil {
		return nil, fmt.Errorf("failed to gather stats: %w", err)
	}
	// every chunk has exactly one CONTAINS edge
	stats.ContainsEdges = stats.Chunks

	rows, err := s.pool.Query(ctx, `SELECT type, COUNT(*) FROM entities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, err
		}
		stats.EntitiesByType[domain.EntityType(entityType)] = count
	}
	return stats, rows.Err()
}

func scanChunks(rows pgx.Rows) ([]*domain.Chunk, error) {
	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.Start, &c.End); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}
