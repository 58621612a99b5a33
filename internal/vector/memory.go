package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in unit tests and single-process
// deployments. All operations are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	dim       int
	vectors   map[string][]float32
	insertSeq map[string]int
	nextSeq   int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{
		dim:       dim,
		vectors:   make(map[string][]float32),
		insertSeq: make(map[string]int),
	}
}

func (s *MemoryStore) Put(ctx context.Context, chunkID string, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDimension(s.dim, vec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]float32, len(vec))
	copy(stored, vec)
	if _, exists := s.vectors[chunkID]; !exists {
		s.insertSeq[chunkID] = s.nextSeq
		s.nextSeq++
	}
	s.vectors[chunkID] = stored
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkDimension(s.dim, query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		Match
		seq int
	}
	results := make([]scored, 0, len(s.vectors))
	for id, vec := range s.vectors {
		results = append(results, scored{
			Match: Match{ChunkID: id, Score: cosine(query, vec)},
			seq:   s.insertSeq[id],
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = r.Match
	}
	return matches, nil
}

func (s *MemoryStore) Delete(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, chunkID)
	delete(s.insertSeq, chunkID)
	return nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.vectors, id)
		delete(s.insertSeq, id)
	}
	return nil
}

func (s *MemoryStore) ChunkIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Dimension() int {
	return s.dim
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
