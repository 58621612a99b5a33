package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DeterministicDimensions is deliberately small: stub vectors are for
// plumbing tests, not similarity quality.
const DeterministicDimensions = 10

// Deterministic is a NON-SEMANTIC stub embedder for tests and local
// development. It hashes word tokens into a fixed number of buckets and
// L2-normalizes the result. The same text always yields the same vector, but
// similarity scores carry no meaning and must never be mixed with vectors
// from a real model in the same store.
type Deterministic struct {
	dimensions int
}

var _ Client = (*Deterministic)(nil)

// NewDeterministic creates the stub with the default low dimension.
func NewDeterministic() *Deterministic {
	return &Deterministic{dimensions: DeterministicDimensions}
}

// NewDeterministicWithDimension creates a stub of an explicit dimension,
// which lets tests exercise dimension-mismatch handling.
func NewDeterministicWithDimension(dim int) *Deterministic {
	if dim <= 0 {
		dim = DeterministicDimensions
	}
	return &Deterministic{dimensions: dim}
}

func (d *Deterministic) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, d.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		bucket := int(sum % uint64(d.dimensions))
		// deterministic sign keeps vectors spread instead of all-positive
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// empty or stopword-free input still gets a valid unit vector
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (d *Deterministic) Dimension() int {
	return d.dimensions
}
