package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/synapse/internal/chunker"
	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/extractor"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/vector"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *graph.MemoryStore, *vector.MemoryStore) {
	t.Helper()
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	s := NewService(g, v, embedding.NewDeterministic(), extractor.NewRuleExtractor(), opts...)
	return s, g, v
}

func TestIngestDocument_FullPipeline(t *testing.T) {
	s, g, v := newTestService(t)
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{
		Source:  "founding.txt",
		Content: "Apple Inc. was founded by Steve Jobs in Cupertino, California in 1976.",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.DocumentID)
	require.Len(t, result.ChunkIDs, 1)
	assert.GreaterOrEqual(t, result.EntityCount, 4, "expect org, person, places and date")
	assert.Empty(t, result.Warnings)

	doc, err := g.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "founding.txt", doc.Source)

	chunks, err := g.ChunksByDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, result.ChunkIDs[0], chunks[0].ID)

	entities, err := g.EntitiesByDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	normalized := make([]string, 0, len(entities))
	for _, e := range entities {
		normalized = append(normalized, e.Normalized)
	}
	assert.Contains(t, normalized, "apple inc")
	assert.Contains(t, normalized, "steve jobs")
	assert.Contains(t, normalized, "cupertino")

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunkIDs, vecIDs, "every chunk gets a vector")
}

func TestIngestDocument_ContentHashIDIsStable(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	r1, err := s.IngestDocument(ctx, IngestInput{Source: "a.txt", Content: "same content"})
	require.NoError(t, err)

	s2, _, _ := newTestService(t)
	r2, err := s2.IngestDocument(ctx, IngestInput{Source: "b.txt", Content: "same content"})
	require.NoError(t, err)

	assert.Equal(t, r1.DocumentID, r2.DocumentID)
}

func TestIngestDocument_EmptyContent(t *testing.T) {
	s, g, _ := newTestService(t)
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-empty", Source: "empty.txt"})
	require.NoError(t, err)
	assert.Empty(t, result.ChunkIDs)
	assert.Zero(t, result.EntityCount)

	exists, err := g.DocumentExists(ctx, "doc-empty")
	require.NoError(t, err)
	assert.True(t, exists, "empty document still gets a node")
}

func TestIngestDocument_ConflictWithoutReplace(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	input := IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "first version"}
	_, err := s.IngestDocument(ctx, input)
	require.NoError(t, err)

	_, err = s.IngestDocument(ctx, input)
	assert.ErrorIs(t, err, domain.ErrDocumentAlreadyExists)
}

func TestIngestDocument_ReplaceDropsPriorState(t *testing.T) {
	cfg := chunker.Config{ChunkSize: 30, Overlap: 0, Strategy: chunker.StrategyFixed}
	s, g, v := newTestService(t, WithChunkConfig(cfg))
	ctx := context.Background()

	long := strings.Repeat("Grace Hopper wrote compilers. ", 4)
	_, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: long})
	require.NoError(t, err)

	result, err := s.IngestDocument(ctx, IngestInput{
		DocumentID: "doc-1",
		Source:     "a.txt",
		Content:    "Short new text.",
		Replace:    true,
	})
	require.NoError(t, err)
	require.Len(t, result.ChunkIDs, 1)

	chunks, err := g.ChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1, "old chunks are gone")
	assert.Equal(t, "Short new text.", chunks[0].Content)

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunkIDs, vecIDs, "stale vectors are gone")
}

// failingGraph forces the transaction to fail after some writes succeeded.
type failingGraph struct {
	*graph.MemoryStore
	failWith error
}

func (f *failingGraph) WithTx(ctx context.Context, fn func(tx graph.Tx) error) error {
	return f.MemoryStore.WithTx(ctx, func(tx graph.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return f.failWith
	})
}

func TestIngestDocument_GraphFailureLeavesNoGhosts(t *testing.T) {
	g := &failingGraph{MemoryStore: graph.NewMemoryStore(), failWith: errors.New("connection reset")}
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	s := NewService(g, v, embedding.NewDeterministic(), extractor.NewRuleExtractor())
	ctx := context.Background()

	_, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "Some text about Tesla."})
	require.Error(t, err)
	var derr *domain.DomainError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeGraphWriteFailure, derr.Code)

	exists, gerr := g.DocumentExists(ctx, "doc-1")
	require.NoError(t, gerr)
	assert.False(t, exists)

	vecIDs, verr := v.ChunkIDs(ctx)
	require.NoError(t, verr)
	assert.Empty(t, vecIDs, "no vectors for a rolled-back document")
}

// failOnceEmbedder fails the first call per text, succeeding on retry.
type failOnceEmbedder struct {
	inner embedding.Client

	mu   sync.Mutex
	seen map[string]bool
}

func (f *failOnceEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	first := !f.seen[text]
	f.seen[text] = true
	f.mu.Unlock()
	if first {
		return nil, fmt.Errorf("transient upstream error")
	}
	return f.inner.GenerateEmbedding(ctx, text)
}

func (f *failOnceEmbedder) Dimension() int { return f.inner.Dimension() }

func TestIngestDocument_EmbeddingRetriesOnce(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := &failOnceEmbedder{inner: embedding.NewDeterministic(), seen: make(map[string]bool)}
	s := NewService(g, v, emb, extractor.NewRuleExtractor())
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "retry me"})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings, "one retry absorbs a single transient failure")

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, vecIDs, 1)
}

// brokenEmbedder always fails.
type brokenEmbedder struct{}

func (brokenEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("model offline")
}

func (brokenEmbedder) Dimension() int { return embedding.DeterministicDimensions }

func TestIngestDocument_EmbeddingFailureDegradesToWarning(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	s := NewService(g, v, brokenEmbedder{}, extractor.NewRuleExtractor())
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "cannot embed this"})
	require.NoError(t, err, "embedding failure must not fail ingestion")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "embedding failed")

	// the chunk is still in the graph
	chunks, err := g.ChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, vecIDs)
}

func TestIngestDocument_ExtractorFailureDegradesToWarning(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	broken := extractor.Func(func(ctx context.Context, text string) ([]domain.Mention, error) {
		return nil, fmt.Errorf("ner backend down")
	})
	s := NewService(g, v, embedding.NewDeterministic(), broken)
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "Apple Inc. again"})
	require.NoError(t, err)
	assert.Zero(t, result.EntityCount)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "entity extraction failed")
}

func TestIngestDocument_ExtractorFailureIsPerChunk(t *testing.T) {
	cfg := chunker.Config{ChunkSize: 35, Overlap: 0, Strategy: chunker.StrategySentence}
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)

	rule := extractor.NewRuleExtractor()
	flaky := extractor.Func(func(ctx context.Context, text string) ([]domain.Mention, error) {
		if strings.Contains(text, "Tesla") {
			return nil, fmt.Errorf("ner backend down")
		}
		return rule.Extract(ctx, text)
	})
	s := NewService(g, v, embedding.NewDeterministic(), flaky, WithChunkConfig(cfg))
	ctx := context.Background()

	content := "Apple Inc. announced results. Tesla delayed the launch event. Microsoft shipped a release."
	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: content})
	require.NoError(t, err)
	require.Len(t, result.ChunkIDs, 3)

	// only the failing chunk is warned about, by id
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "entity extraction failed")
	assert.Contains(t, result.Warnings[0], "doc-1:1")

	// sibling chunks keep their entities
	entities, err := g.EntitiesByDocument(ctx, "doc-1")
	require.NoError(t, err)
	normalized := make([]string, 0, len(entities))
	for _, e := range entities {
		normalized = append(normalized, e.Normalized)
	}
	assert.Contains(t, normalized, "apple inc")
	assert.Contains(t, normalized, "microsoft")
	assert.NotContains(t, normalized, "tesla")

	// the degraded chunk is still stored and embedded
	chunks, err := g.ChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, vecIDs, 3)
}

func TestIngestDocument_UngroundedMentionsDropped(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	lying := extractor.Func(func(ctx context.Context, text string) ([]domain.Mention, error) {
		return []domain.Mention{
			{Surface: "not in the text", Type: domain.EntityTypeOrg, Start: 0, End: 15},
		}, nil
	})
	s := NewService(g, v, embedding.NewDeterministic(), lying)
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "actual chunk content"})
	require.NoError(t, err)
	assert.Zero(t, result.EntityCount)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "ungrounded mention")
}

func TestDeleteDocument_RemovesGraphAndVectors(t *testing.T) {
	s, g, v := newTestService(t)
	ctx := context.Background()

	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: "Grace Hopper wrote compilers."})
	require.NoError(t, err)
	require.NotEmpty(t, result.ChunkIDs)

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	exists, err := g.DocumentExists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)

	vecIDs, err := v.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, vecIDs)

	err = s.DeleteDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestIngestDocument_MultiChunkOverlapSharesEntities(t *testing.T) {
	cfg := chunker.Config{ChunkSize: 100, Overlap: 0, Strategy: chunker.StrategyFixed}
	s, g, _ := newTestService(t, WithChunkConfig(cfg))
	ctx := context.Background()

	content := "Microsoft announced a partnership. " +
		strings.Repeat("Filler sentences follow here. ", 4) +
		"The deal was confirmed by Microsoft in Redmond."
	result, err := s.IngestDocument(ctx, IngestInput{DocumentID: "doc-1", Source: "a.txt", Content: content})
	require.NoError(t, err)
	require.Greater(t, len(result.ChunkIDs), 1)

	// the same entity mentioned in different chunks resolves to one node
	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Entities, result.EntityCount)

	chunks, err := g.ChunksMentioning(ctx, "microsoft", domain.EntityTypeOrg, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(chunks), 2)
}
