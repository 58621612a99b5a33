// Package search answers retrieval queries over the graph and vector stores.
// Three modes: vector (similarity only), graph (entity match only) and hybrid,
// which fuses both signals into one ranking.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/extractor"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/telemetry"
	"github.com/synapse-hq/synapse/internal/vector"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeGraph  Mode = "graph"
	ModeHybrid Mode = "hybrid"
)

const (
	defaultTopK            = 10
	candidateMultiplier    = 2
	mentioningChunksPerKey = 50
	snippetMaxChars        = 220
)

// Weights controls the hybrid fusion. Both signals are in [0,1] after
// normalization, so the weights express their relative importance directly.
type Weights struct {
	Vector float64
	Graph  float64
}

// DefaultWeights balances the two signals evenly.
func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Graph: 0.5}
}

// SearchInput is one query.
type SearchInput struct {
	Query string
	Mode  Mode
	TopK  int
}

// Result is one ranked chunk.
type Result struct {
	ChunkID         string   `json:"chunk_id"`
	DocumentID      string   `json:"document_id"`
	Content         string   `json:"content"`
	Snippet         string   `json:"snippet"`
	Score           float32  `json:"score"`
	VectorScore     float32  `json:"vector_score,omitempty"`
	MatchedEntities []string `json:"matched_entities,omitempty"`
}

// SearchOutput wraps the ranked results. Degraded is set when hybrid search
// lost its vector signal and fell back to graph-only ranking.
type SearchOutput struct {
	Results  []*Result `json:"results"`
	Mode     Mode      `json:"mode"`
	Degraded bool      `json:"degraded,omitempty"`
}

// Service executes searches.
type Service struct {
	graph     graph.Store
	vectors   vector.Store
	embedder  embedding.Client
	extractor extractor.Extractor
	weights   Weights
}

// Option configures a Service.
type Option func(*Service)

// WithWeights overrides the hybrid fusion weights.
func WithWeights(w Weights) Option {
	return func(s *Service) {
		if w.Vector >= 0 && w.Graph >= 0 && w.Vector+w.Graph > 0 {
			s.weights = w
		}
	}
}

// NewService creates the search service.
func NewService(g graph.Store, v vector.Store, e embedding.Client, x extractor.Extractor, opts ...Option) *Service {
	s := &Service{
		graph:     g,
		vectors:   v,
		embedder:  e,
		extractor: x,
		weights:   DefaultWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeMode(mode Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeVector:
		return ModeVector, nil
	case ModeGraph:
		return ModeGraph, nil
	case ModeHybrid, "":
		return ModeHybrid, nil
	}
	return "", domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
		"invalid search mode", fmt.Errorf("mode %q is not vector, graph or hybrid", mode))
}

// Search runs one query. Scores in the output are non-increasing; an empty
// match yields an empty slice, never an error.
func (s *Service) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	mode, err := normalizeMode(input.Mode)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Mode:      string(mode),
		Operation: "search",
	})
	defer span.End()

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	out := &SearchOutput{Results: []*Result{}, Mode: mode}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return out, nil
	}

	switch mode {
	case ModeVector:
		results, err := s.vectorCandidates(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		out.Results = truncate(results, topK)
	case ModeGraph:
		results, err := s.graphCandidates(ctx, query)
		if err != nil {
			return nil, err
		}
		out.Results = truncate(results, topK)
	case ModeHybrid:
		results, degraded, err := s.hybrid(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		out.Results = results
		out.Degraded = degraded
	}
	return out, nil
}

// vectorCandidates embeds the query and resolves the nearest chunks. The
// returned results keep the store's score order.
func (s *Service) vectorCandidates(ctx context.Context, query string, limit int) ([]*Result, error) {
	vec, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure,
			"failed to embed query", err)
	}

	matches, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorUnavailable,
			"vector search failed", err)
	}
	if len(matches) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ChunkID)
	}
	chunks, err := s.graph.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]*Result, 0, len(matches))
	for _, m := range matches {
		c, ok := byID[m.ChunkID]
		if !ok {
			// vector entry without a graph node; integrity reports these
			continue
		}
		results = append(results, &Result{
			ChunkID:     c.ID,
			DocumentID:  c.DocumentID,
			Content:     c.Content,
			Snippet:     makeSnippet(c.Content),
			Score:       m.Score,
			VectorScore: m.Score,
		})
	}
	return results, nil
}

// graphCandidates extracts entities from the query and collects the chunks
// mentioning them. A chunk's score is the fraction of query entities it
// matches.
func (s *Service) graphCandidates(ctx context.Context, query string) ([]*Result, error) {
	mentions, err := s.extractor.Extract(ctx, query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailure,
			"failed to extract entities from query", err)
	}

	keys := make(map[string]domain.Mention)
	for _, m := range mentions {
		keys[domain.EntityKey(domain.NormalizeEntity(m.Surface), m.Type)] = m
	}
	if len(keys) == 0 {
		return []*Result{}, nil
	}

	type hit struct {
		chunk   *domain.Chunk
		matched []string
	}
	hits := make(map[string]*hit)
	for key, m := range keys {
		normalized := domain.NormalizeEntity(m.Surface)
		chunks, err := s.graph.ChunksMentioning(ctx, normalized, m.Type, mentioningChunksPerKey)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			h, ok := hits[c.ID]
			if !ok {
				h = &hit{chunk: c}
				hits[c.ID] = h
			}
			h.matched = append(h.matched, key)
		}
	}

	total := float32(len(keys))
	results := make([]*Result, 0, len(hits))
	for _, h := range hits {
		sort.Strings(h.matched)
		results = append(results, &Result{
			ChunkID:         h.chunk.ID,
			DocumentID:      h.chunk.DocumentID,
			Content:         h.chunk.Content,
			Snippet:         makeSnippet(h.chunk.Content),
			Score:           float32(len(h.matched)) / total,
			MatchedEntities: h.matched,
		})
	}
	sortResults(results)
	return results, nil
}

// hybrid fuses vector similarity and graph entity matches by a weighted sum
// of the min-max normalized vector score and the graph match fraction. A
// failing vector side degrades the search to graph-only instead of erroring.
func (s *Service) hybrid(ctx context.Context, query string, topK int) ([]*Result, bool, error) {
	vectorResults, verr := s.vectorCandidates(ctx, query, topK*candidateMultiplier)
	degraded := verr != nil
	if degraded {
		log.Printf("search: vector side unavailable, degrading to graph-only: %v", verr)
		telemetry.CaptureError(ctx, verr)
	}

	graphResults, err := s.graphCandidates(ctx, query)
	if err != nil {
		return nil, false, err
	}

	if degraded {
		return truncate(graphResults, topK), true, nil
	}

	normalizeVectorScores(vectorResults)

	merged := make(map[string]*Result)
	for _, r := range vectorResults {
		clone := *r
		clone.Score = float32(s.weights.Vector) * r.Score
		merged[r.ChunkID] = &clone
	}
	for _, g := range graphResults {
		boost := float32(s.weights.Graph) * g.Score
		if r, ok := merged[g.ChunkID]; ok {
			r.Score += boost
			r.MatchedEntities = g.MatchedEntities
			continue
		}
		clone := *g
		clone.Score = boost
		merged[g.ChunkID] = &clone
	}

	results := make([]*Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sortResults(results)
	return truncate(results, topK), false, nil
}

// normalizeVectorScores rescales scores to [0,1] across the candidate set.
// A single candidate, or a flat set, normalizes to 1.
func normalizeVectorScores(results []*Result) {
	if len(results) == 0 {
		return
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	for _, r := range results {
		if max == min {
			r.Score = 1
		} else {
			r.Score = (r.Score - min) / (max - min)
		}
	}
}

func sortResults(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func truncate(results []*Result, topK int) []*Result {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}

func makeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) <= snippetMaxChars {
		return clean
	}
	return string(runes[:snippetMaxChars-3]) + "..."
}
