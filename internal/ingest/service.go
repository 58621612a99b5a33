// Package ingest orchestrates the document pipeline: chunk the raw text,
// extract entity mentions, write the graph atomically, then embed chunks into
// the vector store. The graph write is the durability anchor; a failed graph
// transaction leaves no trace of the document. Embedding failures degrade to
// warnings, the affected chunks stay reachable through graph search until
// reconciliation re-embeds them.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/synapse-hq/synapse/internal/chunker"
	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/extractor"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/telemetry"
	"github.com/synapse-hq/synapse/internal/vector"
)

// Archiver persists the raw document text outside the stores so the whole
// system can be rebuilt from archived originals.
type Archiver interface {
	ArchiveDocument(ctx context.Context, documentID string, content []byte) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// IngestInput is one document to ingest.
type IngestInput struct {
	// DocumentID is optional; when empty it is derived from the content
	// hash, so identical content maps to the same document.
	DocumentID string
	Source     string
	Content    string
	Metadata   map[string]string

	// Replace deletes any prior state for the document id before
	// re-ingesting. Without it an existing id is a conflict.
	Replace bool
}

// IngestionResult reports what one ingestion produced. Warnings carry the
// recoverable failures (per-chunk extraction or embedding) that did not stop
// the pipeline.
type IngestionResult struct {
	DocumentID  string   `json:"document_id"`
	ChunkIDs    []string `json:"chunk_ids"`
	EntityCount int      `json:"entity_count"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Service runs the ingestion pipeline.
type Service struct {
	graph     graph.Store
	vectors   vector.Store
	embedder  embedding.Client
	extractor extractor.Extractor
	archive   Archiver // nil disables archiving
	chunkCfg  chunker.Config

	// maxConcurrency bounds the per-chunk extraction and embedding fan-out.
	maxConcurrency int

	// stageTimeout bounds each extraction and embedding call so a hung
	// backend cannot stall the whole pipeline.
	stageTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithChunkConfig overrides the default chunking configuration.
func WithChunkConfig(cfg chunker.Config) Option {
	return func(s *Service) { s.chunkCfg = cfg }
}

// WithArchiver enables raw-document archiving.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithMaxConcurrency bounds the chunk fan-out.
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithStageTimeout bounds individual extraction and embedding calls.
func WithStageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stageTimeout = d
		}
	}
}

// NewService creates the ingestion service.
func NewService(g graph.Store, v vector.Store, e embedding.Client, x extractor.Extractor, opts ...Option) *Service {
	s := &Service{
		graph:          g,
		vectors:        v,
		embedder:       e,
		extractor:      x,
		chunkCfg:       chunker.DefaultConfig(),
		maxConcurrency: 4,
		stageTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chunkWork is the per-chunk computation result gathered before the graph
// transaction.
type chunkWork struct {
	chunk    *domain.Chunk
	mentions []domain.Mention
}

// IngestDocument runs the full pipeline for one document.
func (s *Service) IngestDocument(ctx context.Context, input IngestInput) (*IngestionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestDocument", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc := domain.NewDocument(input.DocumentID, input.Source, input.Content, input.Metadata)

	exists, err := s.graph.DocumentExists(ctx, doc.ID)
	if err != nil {
		return nil, domain.NewGraphWriteError(doc.ID, err)
	}
	if exists && !input.Replace {
		return nil, domain.ErrDocumentAlreadyExists
	}

	chunks, err := chunker.Chunk(doc.ID, input.Content, s.chunkCfg)
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{DocumentID: doc.ID, ChunkIDs: make([]string, 0, len(chunks))}
	for _, c := range chunks {
		result.ChunkIDs = append(result.ChunkIDs, c.ID)
	}

	// Extraction is pure computation, so it fans out before the write.
	work, warnings, err := s.extractAll(ctx, chunks)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	// On replace the vector entries go first; a crash between the vector
	// delete and the graph write leaves graph-only chunks, which
	// reconciliation re-embeds.
	var staleChunkIDs []string
	if exists {
		staleChunkIDs, err = s.priorChunkIDs(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if err := s.vectors.DeleteMany(ctx, staleChunkIDs); err != nil {
			log.Printf("ingest: failed to delete stale vectors for %s: %v", doc.ID, err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("stale vector cleanup failed for document %s", doc.ID))
		}
	}

	entityCount, err := s.writeGraph(ctx, doc, work, exists)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewGraphWriteError(doc.ID, err)
	}
	result.EntityCount = entityCount

	// Post-commit: chunks are durable in the graph, embedding failures
	// only degrade vector recall.
	result.Warnings = append(result.Warnings, s.embedAll(ctx, chunks)...)

	if s.archive != nil {
		if err := s.archive.ArchiveDocument(ctx, doc.ID, []byte(input.Content)); err != nil {
			log.Printf("ingest: failed to archive document %s: %v", doc.ID, err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("raw document archive failed for %s", doc.ID))
		}
	}

	log.Printf("ingest: document %s ingested (%d chunks, %d entities, %d warnings)",
		doc.ID, len(chunks), entityCount, len(result.Warnings))
	return result, nil
}

// extractAll runs entity extraction for every chunk concurrently. A failing
// extractor degrades that chunk to zero entities with a warning; ungrounded
// mentions are dropped the same way. Only context cancellation aborts.
func (s *Service) extractAll(ctx context.Context, chunks []*domain.Chunk) ([]chunkWork, []string, error) {
	work := make([]chunkWork, len(chunks))
	warnings := make([]string, 0)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cctx, cancel := context.WithTimeout(gctx, s.stageTimeout)
			mentions, err := s.extractor.Extract(cctx, c.Content)
			cancel()
			if err != nil {
				log.Printf("ingest: extraction failed for chunk %s: %v", c.ID, err)
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("entity extraction failed for chunk %s", c.ID))
				mu.Unlock()
				work[i] = chunkWork{chunk: c}
				return nil
			}

			grounded := mentions[:0]
			for _, m := range mentions {
				if err := domain.ValidateMention(c.Content, m); err != nil {
					log.Printf("ingest: dropping ungrounded mention in chunk %s: %v", c.ID, err)
					mu.Lock()
					warnings = append(warnings, fmt.Sprintf("ungrounded mention %q dropped in chunk %s", m.Surface, c.ID))
					mu.Unlock()
					continue
				}
				grounded = append(grounded, m)
			}
			work[i] = chunkWork{chunk: c, mentions: grounded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return work, warnings, nil
}

// writeGraph stores the document, its chunks and their mentions in one
// transaction and returns the distinct entity count.
func (s *Service) writeGraph(ctx context.Context, doc *domain.Document, work []chunkWork, replace bool) (int, error) {
	entityKeys := make(map[string]bool)

	err := s.graph.WithTx(ctx, func(tx graph.Tx) error {
		if replace {
			if err := tx.DeleteDocument(ctx, doc.ID); err != nil {
				return err
			}
		}
		if err := tx.PutDocument(ctx, doc); err != nil {
			return err
		}
		for _, w := range work {
			if err := tx.PutChunk(ctx, w.chunk); err != nil {
				return err
			}
			for _, m := range w.mentions {
				normalized := domain.NormalizeEntity(m.Surface)
				em := &domain.EntityMention{
					Entity: domain.Entity{
						Name:       m.Surface,
						Type:       m.Type,
						Normalized: normalized,
					},
					ChunkID: w.chunk.ID,
					Start:   m.Start,
					End:     m.End,
				}
				if err := tx.PutEntityMention(ctx, em); err != nil {
					return err
				}
				entityKeys[domain.EntityKey(normalized, m.Type)] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entityKeys), nil
}

// embedAll embeds every chunk concurrently with one retry per chunk and
// stores the vectors. Failures become warnings, never errors.
func (s *Service) embedAll(ctx context.Context, chunks []*domain.Chunk) []string {
	warnings := make([]string, 0)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for _, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("embedding skipped for chunk %s: %v", c.ID, err))
				mu.Unlock()
				return nil
			}
			if err := s.embedChunk(gctx, c); err != nil {
				log.Printf("ingest: embedding failed for chunk %s: %v", c.ID, err)
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("embedding failed for chunk %s", c.ID))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(warnings)
	return warnings
}

// embedChunk generates and stores one chunk vector, retrying the generation
// once on transient failure.
func (s *Service) embedChunk(ctx context.Context, c *domain.Chunk) error {
	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	vec, err := s.embedder.GenerateEmbedding(ctx, c.Content)
	if err != nil {
		vec, err = s.embedder.GenerateEmbedding(ctx, c.Content)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure,
				"embedding generation failed after retry", err)
		}
	}
	return s.vectors.Put(ctx, c.ID, vec)
}

// priorChunkIDs lists the chunk ids currently attached to a document.
func (s *Service) priorChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	chunks, err := s.graph.ChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// DeleteDocument removes a document everywhere: vectors first, then the
// graph cascade, then the archive copy.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.DeleteDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	chunkIDs, err := s.priorChunkIDs(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.vectors.DeleteMany(ctx, chunkIDs); err != nil {
		return fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
	}

	err = s.graph.WithTx(ctx, func(tx graph.Tx) error {
		return tx.DeleteDocument(ctx, documentID)
	})
	if err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.DeleteDocument(ctx, documentID); err != nil {
			log.Printf("ingest: failed to delete archived copy of %s: %v", documentID, err)
		}
	}
	return nil
}
