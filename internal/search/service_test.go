package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/extractor"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/vector"
)

// mapEmbedder returns hand-crafted vectors per exact text, so tests control
// similarity instead of depending on a real model.
type mapEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (m *mapEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector registered for %q", text)
}

func (m *mapEmbedder) Dimension() int { return m.dim }

type fixture struct {
	graph   *graph.MemoryStore
	vectors *vector.MemoryStore
	emb     *mapEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		graph:   graph.NewMemoryStore(),
		vectors: vector.NewMemoryStore(3),
		emb:     &mapEmbedder{vectors: make(map[string][]float32), dim: 3},
	}
}

func (f *fixture) addChunk(t *testing.T, docID, chunkID, content string, vec []float32, mentions ...domain.EntityMention) {
	t.Helper()
	ctx := context.Background()

	err := f.graph.WithTx(ctx, func(tx graph.Tx) error {
		doc := &domain.Document{ID: docID, Source: docID + ".txt", CreatedAt: time.Now().UTC()}
		if err := tx.PutDocument(ctx, doc); err != nil {
			return err
		}
		c := &domain.Chunk{ID: chunkID, DocumentID: docID, Content: content, End: len([]rune(content))}
		if err := tx.PutChunk(ctx, c); err != nil {
			return err
		}
		for _, m := range mentions {
			m.ChunkID = chunkID
			if err := tx.PutEntityMention(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	if vec != nil {
		require.NoError(t, f.vectors.Put(ctx, chunkID, vec))
	}
}

func orgMention(name string) domain.EntityMention {
	return domain.EntityMention{
		Entity: domain.Entity{
			Name:       name,
			Type:       domain.EntityTypeOrg,
			Normalized: domain.NormalizeEntity(name),
		},
		Start: 0,
		End:   len([]rune(name)),
	}
}

func (f *fixture) service(opts ...Option) *Service {
	return NewService(f.graph, f.vectors, f.emb, extractor.NewRuleExtractor(), opts...)
}

func TestSearch_VectorMode(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-1", "doc-1:0", "about databases", []float32{1, 0, 0})
	f.addChunk(t, "doc-2", "doc-2:0", "about cooking", []float32{0, 1, 0})
	f.emb.vectors["database query"] = []float32{1, 0.05, 0}

	out, err := f.service().Search(context.Background(), SearchInput{Query: "database query", Mode: ModeVector, TopK: 5})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "doc-1:0", out.Results[0].ChunkID)
	assert.Equal(t, "doc-1", out.Results[0].DocumentID)
	assert.Greater(t, out.Results[0].Score, out.Results[1].Score)
}

func TestSearch_GraphMode(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-1", "doc-1:0", "Apple Inc. shipped a product", nil, orgMention("Apple Inc."))
	f.addChunk(t, "doc-2", "doc-2:0", "nothing relevant here", nil)

	out, err := f.service().Search(context.Background(), SearchInput{Query: "news about Apple Inc. today", Mode: ModeGraph, TopK: 5})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "doc-1:0", out.Results[0].ChunkID)
	assert.NotEmpty(t, out.Results[0].MatchedEntities)
}

func TestSearch_GraphModeNoEntitiesInQuery(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-1", "doc-1:0", "some content", nil, orgMention("Apple Inc."))

	out, err := f.service().Search(context.Background(), SearchInput{Query: "plain lowercase words only", Mode: ModeGraph})
	require.NoError(t, err)
	assert.Empty(t, out.Results, "query without entities matches nothing in graph mode")
}

func TestSearch_HybridFusesBothSignals(t *testing.T) {
	f := newFixture(t)

	// high vector similarity, no entity match
	f.addChunk(t, "doc-vec", "doc-vec:0", "semantically close text", []float32{1, 0, 0})
	// entity match, weaker vector similarity
	f.addChunk(t, "doc-both", "doc-both:0", "Apple Inc. quarterly report", []float32{0.6, 0.8, 0}, orgMention("Apple Inc."))
	// neither signal
	f.addChunk(t, "doc-none", "doc-none:0", "unrelated", []float32{0, 0, 1})

	f.emb.vectors["Apple Inc. earnings"] = []float32{1, 0, 0}

	out, err := f.service().Search(context.Background(), SearchInput{Query: "Apple Inc. earnings", Mode: ModeHybrid, TopK: 3})
	require.NoError(t, err)
	assert.False(t, out.Degraded)
	require.GreaterOrEqual(t, len(out.Results), 2)

	// the chunk holding both signals outranks the vector-only one:
	// vector-only normalizes to 0.5*1.0 = 0.5, both-signals gets
	// 0.5*norm + 0.5*1.0 which is always > 0.5 for norm > 0
	assert.Equal(t, "doc-both:0", out.Results[0].ChunkID)
	assert.Contains(t, []string{"doc-vec:0"}, out.Results[1].ChunkID)

	for i := 1; i < len(out.Results); i++ {
		assert.GreaterOrEqual(t, out.Results[i-1].Score, out.Results[i].Score, "scores are non-increasing")
	}
}

func TestSearch_HybridDeduplicatesByChunk(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-1", "doc-1:0", "Apple Inc. designs hardware", []float32{1, 0, 0}, orgMention("Apple Inc."))
	f.emb.vectors["Apple Inc."] = []float32{1, 0, 0}

	out, err := f.service().Search(context.Background(), SearchInput{Query: "Apple Inc.", Mode: ModeHybrid, TopK: 10})
	require.NoError(t, err)
	require.Len(t, out.Results, 1, "chunk found by both signals appears once")
	assert.Equal(t, "doc-1:0", out.Results[0].ChunkID)
}

func TestSearch_HybridTruncatesToTopK(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("doc-%d", i)
		f.addChunk(t, id, id+":0", fmt.Sprintf("content %d", i), []float32{1, float32(i) * 0.1, 0})
	}
	f.emb.vectors["query"] = []float32{1, 0, 0}

	out, err := f.service().Search(context.Background(), SearchInput{Query: "query", Mode: ModeHybrid, TopK: 3})
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
}

// downVectors fails every search call.
type downVectors struct {
	*vector.MemoryStore
}

func (d *downVectors) Search(ctx context.Context, query []float32, topK int) ([]vector.Match, error) {
	return nil, errors.New("index offline")
}

func TestSearch_HybridDegradesToGraphOnly(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-1", "doc-1:0", "Apple Inc. context", []float32{1, 0, 0}, orgMention("Apple Inc."))
	f.emb.vectors["Apple Inc. latest"] = []float32{1, 0, 0}

	s := NewService(f.graph, &downVectors{f.vectors}, f.emb, extractor.NewRuleExtractor())
	out, err := s.Search(context.Background(), SearchInput{Query: "Apple Inc. latest", Mode: ModeHybrid, TopK: 5})
	require.NoError(t, err, "vector outage must not fail hybrid search")
	assert.True(t, out.Degraded)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "doc-1:0", out.Results[0].ChunkID)
}

func TestSearch_VectorModeSurfacesVectorFailure(t *testing.T) {
	f := newFixture(t)
	f.emb.vectors["query"] = []float32{1, 0, 0}

	s := NewService(f.graph, &downVectors{f.vectors}, f.emb, extractor.NewRuleExtractor())
	_, err := s.Search(context.Background(), SearchInput{Query: "query", Mode: ModeVector})
	require.Error(t, err)
	var derr *domain.DomainError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeVectorUnavailable, derr.Code)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	out, err := f.service().Search(context.Background(), SearchInput{Query: "   ", Mode: ModeHybrid})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
}

func TestSearch_InvalidMode(t *testing.T) {
	f := newFixture(t)
	_, err := f.service().Search(context.Background(), SearchInput{Query: "q", Mode: "fulltext"})
	require.Error(t, err)
	var derr *domain.DomainError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeConfiguration, derr.Code)
}

func TestSearch_DefaultModeIsHybrid(t *testing.T) {
	f := newFixture(t)
	f.emb.vectors["anything"] = []float32{1, 0, 0}
	out, err := f.service().Search(context.Background(), SearchInput{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, out.Mode)
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "one two", makeSnippet("  one\n\ttwo "), "whitespace collapses to single spaces")

	long := strings.Repeat("word ", 100)
	snippet := makeSnippet(long)
	assert.Len(t, []rune(snippet), snippetMaxChars)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestMakeSnippet_MultibyteTruncation(t *testing.T) {
	long := strings.Repeat("é", snippetMaxChars+80)
	snippet := makeSnippet(long)

	assert.True(t, utf8.ValidString(snippet), "truncation must not split a rune")
	assert.Len(t, []rune(snippet), snippetMaxChars)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestSearch_CustomWeightsShiftRanking(t *testing.T) {
	f := newFixture(t)
	f.addChunk(t, "doc-vec", "doc-vec:0", "close text", []float32{1, 0, 0})
	f.addChunk(t, "doc-ent", "doc-ent:0", "Apple Inc. text", []float32{0, 1, 0}, orgMention("Apple Inc."))
	f.emb.vectors["Apple Inc. filings"] = []float32{1, 0, 0}

	// all weight on the vector signal ranks the similar chunk first
	s := f.service(WithWeights(Weights{Vector: 1, Graph: 0}))
	out, err := s.Search(context.Background(), SearchInput{Query: "Apple Inc. filings", Mode: ModeHybrid, TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "doc-vec:0", out.Results[0].ChunkID)

	// all weight on the graph signal flips it
	s = f.service(WithWeights(Weights{Vector: 0, Graph: 1}))
	out, err = s.Search(context.Background(), SearchInput{Query: "Apple Inc. filings", Mode: ModeHybrid, TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "doc-ent:0", out.Results[0].ChunkID)
}
