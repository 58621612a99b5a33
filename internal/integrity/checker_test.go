package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/vector"
)

func seed(t *testing.T, g *graph.MemoryStore, v *vector.MemoryStore, emb embedding.Client, docID string, contents []string, embed bool) {
	t.Helper()
	ctx := context.Background()

	err := g.WithTx(ctx, func(tx graph.Tx) error {
		doc := &domain.Document{ID: docID, Source: docID + ".txt", CreatedAt: time.Now().UTC()}
		if err := tx.PutDocument(ctx, doc); err != nil {
			return err
		}
		for i, content := range contents {
			c := &domain.Chunk{
				ID:         domain.ChunkID(docID, i),
				DocumentID: docID,
				Index:      i,
				Content:    content,
				End:        len([]rune(content)),
			}
			if err := tx.PutChunk(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	if embed {
		for i, content := range contents {
			vec, err := emb.GenerateEmbedding(ctx, content)
			require.NoError(t, err)
			require.NoError(t, v.Put(ctx, domain.ChunkID(docID, i), vec))
		}
	}
}

func TestCheck_CleanStores(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()
	seed(t, g, v, emb, "doc-1", []string{"first chunk", "second chunk"}, true)
	seed(t, g, v, emb, "doc-2", []string{"third chunk"}, true)

	report, err := NewChecker(g, v, emb).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.DocumentsChecked)
	assert.Equal(t, 3, report.ChunksChecked)
	assert.Empty(t, report.GraphOnlyChunks)
	assert.Empty(t, report.VectorOnlyChunks)
}

func TestCheck_GraphOnlyChunksReported(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()
	seed(t, g, v, emb, "doc-1", []string{"never embedded"}, false)

	report, err := NewChecker(g, v, emb).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"doc-1:0"}, report.GraphOnlyChunks)
}

func TestCheck_VectorOnlyChunksReported(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()

	vec, err := emb.GenerateEmbedding(context.Background(), "orphan vector")
	require.NoError(t, err)
	require.NoError(t, v.Put(context.Background(), "ghost:0", vec))

	report, err := NewChecker(g, v, emb).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"ghost:0"}, report.VectorOnlyChunks)
}

func TestReconcile_ReembedsGraphOnlyChunks(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()
	seed(t, g, v, emb, "doc-1", []string{"chunk without vector"}, false)

	checker := NewChecker(g, v, emb)
	repaired, err := checker.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1:0"}, repaired)

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// nothing left to repair
	repaired, err = checker.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, repaired)
}

func TestCheck_DoesNotMutate(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()
	seed(t, g, v, emb, "doc-1", []string{"graph only chunk"}, false)

	_, err := NewChecker(g, v, emb).Check(context.Background())
	require.NoError(t, err)

	ids, err := v.ChunkIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "Check never writes vectors")
}

func TestCheckDocument_OffsetMismatch(t *testing.T) {
	g := graph.NewMemoryStore()
	v := vector.NewMemoryStore(embedding.DeterministicDimensions)
	emb := embedding.NewDeterministic()
	ctx := context.Background()

	err := g.WithTx(ctx, func(tx graph.Tx) error {
		doc := &domain.Document{ID: "doc-1", Source: "a.txt", CreatedAt: time.Now().UTC()}
		if err := tx.PutDocument(ctx, doc); err != nil {
			return err
		}
		// offsets claim 5 runes, content has 20
		return tx.PutChunk(ctx, &domain.Chunk{
			ID: "doc-1:0", DocumentID: "doc-1", Content: "twenty runes of text", Start: 0, End: 5,
		})
	})
	require.NoError(t, err)

	violations, err := NewChecker(g, v, emb).CheckDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "offset range")
}
