package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/pagination"
)

// Neo4jStore maps the graph natively onto Neo4j: (:Document)-[:CONTAINS]->
// (:Chunk) and (:Entity)-[:MENTIONS {start, end}]->(:Chunk). Entity
// de-duplication rides on a composite uniqueness constraint over
// (normalized, type) plus MERGE.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Store = (*Neo4jStore)(nil)

// Neo4jConfig configures the driver connection.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// NewNeo4jStore connects, verifies connectivity and installs the uniqueness
// constraints the store relies on.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	s := &Neo4jStore{driver: driver, database: cfg.Database}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_key_unique IF NOT EXISTS FOR (e:Entity) REQUIRE (e.normalized, e.type) IS UNIQUE`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("failed to install schema constraint: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

type neo4jTx struct {
	tx neo4j.ManagedTransaction
}

var _ Tx = (*neo4jTx)(nil)

func (s *Neo4jStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := fn(&neo4jTx{tx: tx}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (t *neo4jTx) run(ctx context.Context, query string, params map[string]any) error {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (t *neo4jTx) PutDocument(ctx context.Context, doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode document metadata: %w", err)
	}
	return t.run(ctx, `
MERGE (d:Document {id: $id})
SET d.source = $source, d.metadata_json = $metadata, d.length = $length, d.created_at = $created_at`,
		map[string]any{
			"id":         doc.ID,
			"source":     doc.Source,
			"metadata":   string(metadata),
			"length":     doc.Length,
			"created_at": doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
}

func (t *neo4jTx) PutChunk(ctx context.Context, chunk *domain.Chunk) error {
	if err := domain.ValidateChunk(chunk); err != nil {
		return err
	}
	return t.run(ctx, `
MATCH (d:Document {id: $document_id})
MERGE (c:Chunk {id: $id})
SET c.document_id = $document_id, c.idx = $idx, c.content = $content,
    c.start_offset = $start, c.end_offset = $end
MERGE (d)-[:CONTAINS]->(c)`,
		map[string]any{
			"id":          chunk.ID,
			"document_id": chunk.DocumentID,
			"idx":         chunk.Index,
			"content":     chunk.Content,
			"start":       chunk.Start,
			"end":         chunk.End,
		})
}

func (t *neo4jTx) PutEntityMention(ctx context.Context, em *domain.EntityMention) error {
	if !domain.ValidEntityType(em.Entity.Type) {
		return domain.ErrInvalidEntityType
	}
	entityID := em.Entity.ID
	if entityID == "" {
		entityID = uuid.NewString()
	}
	// ON CREATE keeps the first writer's id and canonical name
	return t.run(ctx, `
MATCH (c:Chunk {id: $chunk_id})
MERGE (e:Entity {normalized: $normalized, type: $type})
ON CREATE SET e.id = $entity_id, e.name = $name
MERGE (e)-[m:MENTIONS {chunk_id: $chunk_id, start_offset: $start, end_offset: $end}]->(c)`,
		map[string]any{
			"chunk_id":   em.ChunkID,
			"normalized": em.Entity.Normalized,
			"type":       string(em.Entity.Type),
			"entity_id":  entityID,
			"name":       em.Entity.Name,
			"start":      em.Start,
			"end":        em.End,
		})
}

func (t *neo4jTx) DeleteDocument(ctx context.Context, documentID string) error {
	res, err := t.tx.Run(ctx, `
MATCH (d:Document {id: $id})
OPTIONAL MATCH (d)-[:CONTAINS]->(c:Chunk)
DETACH DELETE d, c
RETURN count(d) AS deleted`,
		map[string]any{"id": documentID})
	if err != nil {
		return err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return err
	}
	if deleted, _ := record.Get("deleted"); deleted.(int64) == 0 {
		return domain.ErrDocumentNotFound
	}
	// entities whose last mention went away go too
	return t.run(ctx, `
MATCH (e:Entity)
WHERE NOT (e)-[:MENTIONS]->(:Chunk)
DELETE e`, nil)
}

func (s *Neo4jStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (s *Neo4jStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	records, err := s.read(ctx, `
MATCH (d:Document {id: $id})
RETURN d.id AS id, d.source AS source, d.metadata_json AS metadata, d.length AS length, d.created_at AS created_at`,
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return recordToDocument(records[0])
}

func recordToDocument(record *neo4j.Record) (*domain.Document, error) {
	var doc domain.Document
	doc.ID = stringValue(record, "id")
	doc.Source = stringValue(record, "source")
	if raw := stringValue(record, "metadata"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode document metadata: %w", err)
		}
	}
	if v, ok := record.Get("length"); ok {
		if n, ok := v.(int64); ok {
			doc.Length = int(n)
		}
	}
	if raw := stringValue(record, "created_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse document timestamp: %w", err)
		}
		doc.CreatedAt = ts
	}
	return &doc, nil
}

func (s *Neo4jStore) DocumentExists(ctx context.Context, id string) (bool, error) {
	records, err := s.read(ctx,
		`MATCH (d:Document {id: $id}) RETURN d.id AS id LIMIT 1`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return len(records) > 0, nil
}

func (s *Neo4jStore) ListDocuments(ctx context.Context, cursor string, limit int) ([]*domain.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	params := map[string]any{"limit": limit}
	where := ""
	if decoded != nil {
		where = `WHERE d.created_at > $after_ts OR (d.created_at = $after_ts AND d.id > $after_id)`
		params["after_ts"] = decoded.Timestamp.UTC().Format(time.RFC3339Nano)
		params["after_id"] = decoded.LastID
	}

	records, err := s.read(ctx, fmt.Sprintf(`
MATCH (d:Document)
%s
RETURN d.id AS id, d.source AS source, d.metadata_json AS metadata, d.length AS length, d.created_at AS created_at
ORDER BY d.created_at ASC, d.id ASC
LIMIT $limit`, where), params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]*domain.Document, 0, len(records))
	for _, record := range records {
		doc, err := recordToDocument(record)
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}

	next := pagination.CreateNextCursor(docs, limit,
		func(d *domain.Document) string { return d.ID },
		func(d *domain.Document) time.Time { return d.CreatedAt },
	)
	return docs, next, nil
}

func (s *Neo4jStore) ChunksByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	exists, err := s.DocumentExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	records, err := s.read(ctx, `
MATCH (:Document {id: $id})-[:CONTAINS]->(c:Chunk)
RETURN c.id AS id, c.document_id AS document_id, c.idx AS idx, c.content AS content,
       c.start_offset AS start, c.end_offset AS end
ORDER BY c.idx ASC`,
		map[string]any{"id": documentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return recordsToChunks(records), nil
}

func (s *Neo4jStore) ChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return []*domain.Chunk{}, nil
	}
	records, err := s.read(ctx, `
UNWIND $ids AS want
MATCH (c:Chunk {id: want})
RETURN c.id AS id, c.document_id AS document_id, c.idx AS idx, c.content AS content,
       c.start_offset AS start, c.end_offset AS end`,
		map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	return recordsToChunks(records), nil
}

func (s *Neo4jStore) EntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error) {
	exists, err := s.DocumentExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	records, err := s.read(ctx, `
MATCH (:Document {id: $id})-[:CONTAINS]->(:Chunk)<-[:MENTIONS]-(e:Entity)
RETURN DISTINCT e.id AS id, e.name AS name, e.type AS type, e.normalized AS normalized
ORDER BY type, normalized`,
		map[string]any{"id": documentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	entities := make([]*domain.Entity, 0, len(records))
	for _, record := range records {
		entities = append(entities, &domain.Entity{
			ID:         stringValue(record, "id"),
			Name:       stringValue(record, "name"),
			Type:       domain.EntityType(stringValue(record, "type")),
			Normalized: stringValue(record, "normalized"),
		})
	}
	return entities, nil
}

func (s *Neo4jStore) ChunksMentioning(ctx context.Context, normalized string, entityType domain.EntityType, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.read(ctx, `
MATCH (:Entity {normalized: $normalized, type: $type})-[:MENTIONS]->(c:Chunk)
RETURN DISTINCT c.id AS id, c.document_id AS document_id, c.idx AS idx, c.content AS content,
       c.start_offset AS start, c.end_offset AS end
ORDER BY id
LIMIT $limit`,
		map[string]any{"normalized": normalized, "type": string(entityType), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query mentioning chunks: %w", err)
	}
	return recordsToChunks(records), nil
}

func (s *Neo4jStore) Traverse(ctx context.Context, startID string, rel Relationship, maxHops int) ([]string, error) {
	if maxHops < 1 {
		return nil, domain.ErrInvalidTraversalHops
	}

	var relPattern string
	switch rel {
	case RelContains:
		relPattern = "CONTAINS"
	case RelMentions:
		relPattern = "MENTIONS"
	case RelAny:
		relPattern = "CONTAINS|MENTIONS"
	default:
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration,
			fmt.Sprintf("unknown relationship: %s", rel))
	}

	// path length cannot be a query parameter in Cypher
	query := fmt.Sprintf(`
MATCH (start {id: $id})-[:%s*1..%d]-(n)
WHERE n.id <> $id
RETURN DISTINCT n.id AS id
ORDER BY id`, relPattern, maxHops)

	records, err := s.read(ctx, query, map[string]any{"id": startID})
	if err != nil {
		return nil, fmt.Errorf("failed to traverse graph: %w", err)
	}

	reached := make([]string, 0, len(records))
	for _, record := range records {
		reached = append(reached, stringValue(record, "id"))
	}
	return reached, nil
}

func (s *Neo4jStore) ChunkIDs(ctx context.Context) ([]string, error) {
	records, err := s.read(ctx, `MATCH (c:Chunk) RETURN c.id AS id ORDER BY id`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, stringValue(record, "id"))
	}
	return ids, nil
}

func (s *Neo4jStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{EntitiesByType: make(map[domain.EntityType]int)}

	counts := []struct {
		query string
		dst   *int
	}{
		{`MATCH (d:Document) RETURN count(d) AS n`, &stats.Documents},
		{`MATCH (c:Chunk) RETURN count(c) AS n`, &stats.Chunks},
		{`MATCH (e:Entity) RETURN count(e) AS n`, &stats.Entities},
		{`MATCH ()-[m:MENTIONS]->() RETURN count(m) AS n`, &stats.MentionsEdges},
	}
	for _, c := range counts {
		records, err := s.read(ctx, c.query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
		if len(records) > 0 {
			*c.dst = intValue(records[0], "n")
		}
	}
	// every chunk has exactly one CONTAINS edge
	stats.ContainsEdges = stats.Chunks

	byType, err := s.read(ctx,
		`MATCH (e:Entity) RETURN e.type AS type, count(e) AS count`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities by type: %w", err)
	}
	for _, record := range byType {
		stats.EntitiesByType[domain.EntityType(stringValue(record, "type"))] = intValue(record, "count")
	}
	return stats, nil
}

func recordsToChunks(records []*neo4j.Record) []*domain.Chunk {
	chunks := make([]*domain.Chunk, 0, len(records))
	for _, record := range records {
		chunks = append(chunks, &domain.Chunk{
			ID:         stringValue(record, "id"),
			DocumentID: stringValue(record, "document_id"),
			Index:      intValue(record, "idx"),
			Content:    stringValue(record, "content"),
			Start:      intValue(record, "start"),
			End:        intValue(record, "end"),
		})
	}
	return chunks
}

func stringValue(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intValue(record *neo4j.Record, key string) int {
	if v, ok := record.Get(key); ok {
		if n, ok := v.(int64); ok {
			return int(n)
		}
	}
	return 0
}
