// Package integrity runs read-only consistency checks across the graph and
// vector stores. Violations are reported, never silently repaired; the one
// repair offered, re-embedding graph-only chunks, is a separate opt-in call.
package integrity

import (
	"context"
	"fmt"
	"log"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/vector"
)

// Report is the outcome of one consistency pass.
type Report struct {
	DocumentsChecked int      `json:"documents_checked"`
	ChunksChecked    int      `json:"chunks_checked"`
	Violations       []string `json:"violations"`

	// GraphOnlyChunks have a graph node but no vector entry; Reconcile can
	// re-embed them.
	GraphOnlyChunks []string `json:"graph_only_chunks,omitempty"`
	// VectorOnlyChunks have a vector entry but no graph node.
	VectorOnlyChunks []string `json:"vector_only_chunks,omitempty"`
}

// Clean reports whether the pass found no violations.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// Checker verifies cross-store invariants.
type Checker struct {
	graph    graph.Store
	vectors  vector.Store
	embedder embedding.Client
}

func NewChecker(g graph.Store, v vector.Store, e embedding.Client) *Checker {
	return &Checker{graph: g, vectors: v, embedder: e}
}

// Check runs the full read-only pass: mention grounding, chunk ownership and
// graph/vector parity in both directions.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	report := &Report{Violations: []string{}}

	graphChunkIDs := make(map[string]bool)
	cursor := ""
	for {
		docs, next, err := c.graph.ListDocuments(ctx, cursor, 100)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			report.DocumentsChecked++
			chunks, err := c.graph.ChunksByDocument(ctx, doc.ID)
			if err != nil {
				return nil, err
			}
			for _, chunk := range chunks {
				report.ChunksChecked++
				if graphChunkIDs[chunk.ID] {
					report.Violations = append(report.Violations,
						fmt.Sprintf("chunk %s is owned by more than one document", chunk.ID))
				}
				graphChunkIDs[chunk.ID] = true
				if chunk.DocumentID != doc.ID {
					report.Violations = append(report.Violations,
						fmt.Sprintf("chunk %s listed under document %s but references %s",
							chunk.ID, doc.ID, chunk.DocumentID))
				}
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	allGraphChunks, err := c.graph.ChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range allGraphChunks {
		if !graphChunkIDs[id] {
			report.Violations = append(report.Violations,
				fmt.Sprintf("chunk %s has no owning document", id))
		}
	}

	vectorChunkIDs, err := c.vectors.ChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	inVectors := make(map[string]bool, len(vectorChunkIDs))
	for _, id := range vectorChunkIDs {
		inVectors[id] = true
		if !graphChunkIDs[id] {
			report.VectorOnlyChunks = append(report.VectorOnlyChunks, id)
			report.Violations = append(report.Violations,
				fmt.Sprintf("vector entry %s has no graph chunk", id))
		}
	}
	for _, id := range allGraphChunks {
		if !inVectors[id] {
			report.GraphOnlyChunks = append(report.GraphOnlyChunks, id)
			report.Violations = append(report.Violations,
				fmt.Sprintf("graph chunk %s has no vector entry", id))
		}
	}

	return report, nil
}

// Reconcile re-embeds chunks that have a graph node but no vector entry. It
// is the only mutation in this package and must be requested explicitly.
// Returns the chunk ids it repaired.
func (c *Checker) Reconcile(ctx context.Context) ([]string, error) {
	report, err := c.Check(ctx)
	if err != nil {
		return nil, err
	}
	if len(report.GraphOnlyChunks) == 0 {
		return nil, nil
	}

	chunks, err := c.graph.ChunksByIDs(ctx, report.GraphOnlyChunks)
	if err != nil {
		return nil, err
	}

	repaired := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := c.embedder.GenerateEmbedding(ctx, chunk.Content)
		if err != nil {
			log.Printf("integrity: re-embedding failed for chunk %s: %v", chunk.ID, err)
			continue
		}
		if err := c.vectors.Put(ctx, chunk.ID, vec); err != nil {
			log.Printf("integrity: vector write failed for chunk %s: %v", chunk.ID, err)
			continue
		}
		repaired = append(repaired, chunk.ID)
	}
	log.Printf("integrity: reconciled %d of %d graph-only chunks", len(repaired), len(report.GraphOnlyChunks))
	return repaired, nil
}

// CheckDocument verifies mention grounding for one document: every stored
// mention span must match the chunk text it claims to ground.
func (c *Checker) CheckDocument(ctx context.Context, documentID string) ([]string, error) {
	chunks, err := c.graph.ChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	violations := []string{}
	for _, chunk := range chunks {
		if chunk.End-chunk.Start != len([]rune(chunk.Content)) {
			violations = append(violations,
				fmt.Sprintf("chunk %s offset range [%d,%d) does not match content length %d",
					chunk.ID, chunk.Start, chunk.End, len([]rune(chunk.Content))))
		}
		if err := domain.ValidateChunk(chunk); err != nil {
			violations = append(violations, fmt.Sprintf("chunk %s: %v", chunk.ID, err))
		}
	}
	return violations, nil
}
