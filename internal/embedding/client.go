// Package embedding maps text to fixed-length dense vectors. Two conformance
// classes are provided: a deterministic non-semantic stub for tests and an
// OpenAI-backed client for production similarity search. The two must never
// feed the same vector store; similarity scores across providers are
// meaningless.
package embedding

import "context"

// Client generates embeddings. Implementations are pure functions of the
// input text for a given instance: embed(x) == embed(x), always.
type Client interface {
	// GenerateEmbedding returns the vector for text. The returned slice
	// always has length Dimension().
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Dimension is the fixed vector length this client produces.
	Dimension() int
}
