// Package extractor produces typed entity mentions from chunk text. The
// Extractor interface is the only contract callers depend on; the rule-based
// implementation in this package can be swapped for a statistical NLP backend
// without touching the ingestion pipeline.
package extractor

import (
	"context"

	"github.com/synapse-hq/synapse/internal/domain"
)

// Extractor extracts typed entity mentions from a piece of text. Every
// returned mention's span is a valid substring of the input at the stated
// rune offsets. Zero mentions is valid output, not an error.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]domain.Mention, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, text string) ([]domain.Mention, error)

func (f Func) Extract(ctx context.Context, text string) ([]domain.Mention, error) {
	return f(ctx, text)
}
