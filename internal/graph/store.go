// Package graph persists the knowledge graph: Document, Chunk and Entity
// nodes joined by CONTAINS (Document to Chunk) and MENTIONS (Entity
// mentioned-in Chunk) edges. All write paths go through WithTx so a
// document's nodes and edges land atomically or not at all.
package graph

import (
	"context"

	"github.com/synapse-hq/synapse/internal/domain"
)

// Relationship selects which edge type a traversal follows.
type Relationship string

const (
	RelContains Relationship = "CONTAINS"
	RelMentions Relationship = "MENTIONS"
	// RelAny follows both edge types.
	RelAny Relationship = "ANY"
)

// Stats is an aggregate snapshot of the graph, for the stats endpoint and
// the CLI.
type Stats struct {
	Documents      int                       `json:"documents"`
	Chunks         int                       `json:"chunks"`
	Entities       int                       `json:"entities"`
	ContainsEdges  int                       `json:"contains_edges"`
	MentionsEdges  int                       `json:"mentions_edges"`
	EntitiesByType map[domain.EntityType]int `json:"entities_by_type"`
}

// Tx is the write surface available inside a transaction. Entity
// de-duplication happens in PutEntityMention: the (normalized, type) pair is
// upserted, so concurrent writers converge on one entity node.
type Tx interface {
	PutDocument(ctx context.Context, doc *domain.Document) error
	PutChunk(ctx context.Context, chunk *domain.Chunk) error
	PutEntityMention(ctx context.Context, em *domain.EntityMention) error

	// DeleteDocument removes the document and cascades to its chunks and
	// their mention edges. Entities themselves survive; an entity with no
	// remaining mentions is pruned.
	DeleteDocument(ctx context.Context, documentID string) error
}

// Store is the graph backend contract. Reads run outside transactions.
type Store interface {
	// WithTx runs fn inside a single transaction. If fn returns an error
	// the transaction is rolled back and the error is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	DocumentExists(ctx context.Context, id string) (bool, error)

	// ListDocuments pages through documents ordered by creation time then
	// id. It returns the page and the opaque cursor for the next one,
	// empty when the listing is exhausted.
	ListDocuments(ctx context.Context, cursor string, limit int) ([]*domain.Document, string, error)

	ChunksByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
	ChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error)
	EntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error)

	// ChunksMentioning returns chunks that mention the entity identified
	// by its de-duplication key, at most limit of them.
	ChunksMentioning(ctx context.Context, normalized string, entityType domain.EntityType, limit int) ([]*domain.Chunk, error)

	// Traverse walks edges of the given relationship from a start node and
	// returns the ids of all distinct nodes reachable within maxHops,
	// excluding the start node itself.
	Traverse(ctx context.Context, startID string, rel Relationship, maxHops int) ([]string, error)

	// ChunkIDs lists every chunk node id, for parity checks against the
	// vector store.
	ChunkIDs(ctx context.Context) ([]string, error)

	Stats(ctx context.Context) (*Stats, error)
}
