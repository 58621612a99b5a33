// Package chunker splits raw document text into ordered passages suitable
// for embedding and retrieval. Offsets are rune offsets into the original
// text so every chunk carries provenance back to its source span.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/synapse-hq/synapse/internal/domain"
)

// Strategy selects how chunk boundaries are chosen.
type Strategy string

const (
	StrategyFixed     Strategy = "fixed-size"
	StrategySentence  Strategy = "sentence-boundary"
	StrategyParagraph Strategy = "paragraph"
)

// Config controls chunking.
type Config struct {
	ChunkSize int // max runes per chunk
	Overlap   int // runes shared between consecutive chunks
	Strategy  Strategy
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 1200,
		Overlap:   200,
		Strategy:  StrategySentence,
	}
}

// Validate fails fast on malformed configuration, before any processing.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			"invalid chunking configuration", fmt.Errorf("chunk_size must be > 0, got %d", c.ChunkSize))
	}
	if c.Overlap < 0 {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			"invalid chunking configuration", fmt.Errorf("overlap must be >= 0, got %d", c.Overlap))
	}
	if c.Overlap >= c.ChunkSize {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			"invalid chunking configuration", fmt.Errorf("overlap %d must be smaller than chunk_size %d", c.Overlap, c.ChunkSize))
	}
	switch c.Strategy {
	case StrategyFixed, StrategySentence, StrategyParagraph, "":
	default:
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			"invalid chunking configuration", fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	return nil
}

// Chunk splits text into ordered chunks for the given document id. An empty
// document produces zero chunks; text shorter than ChunkSize produces exactly
// one. With Overlap=0 the chunk offset ranges cover [0, len(text)) with no
// gaps.
func Chunk(documentID, text string, cfg Config) ([]*domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= cfg.ChunkSize {
		return []*domain.Chunk{newChunk(documentID, 0, runes, 0, len(runes))}, nil
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategySentence
	}

	chunks := make([]*domain.Chunk, 0, len(runes)/cfg.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end, strategy)
		}

		chunks = append(chunks, newChunk(documentID, len(chunks), runes, start, end))

		if end >= len(runes) {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

func newChunk(documentID string, index int, runes []rune, start, end int) *domain.Chunk {
	return &domain.Chunk{
		ID:         domain.ChunkID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Content:    string(runes[start:end]),
		Start:      start,
		End:        end,
	}
}

// cutPoint moves a tentative chunk end backwards to the nearest boundary the
// strategy prefers. It never moves past the midpoint of the chunk, so
// degenerate text (no boundaries at all) still makes progress.
func cutPoint(runes []rune, start, end int, strategy Strategy) int {
	minCut := start + (end-start)/2

	switch strategy {
	case StrategyParagraph:
		if cut := lastMatch(runes, minCut, end, isParagraphBreak); cut > minCut {
			return cut
		}
		fallthrough
	case StrategySentence:
		if cut := lastMatch(runes, minCut, end, isSentenceBreak); cut > minCut {
			return cut
		}
		// fall back to any whitespace
		if cut := lastMatch(runes, minCut, end, func(r []rune, i int) bool {
			return unicode.IsSpace(r[i-1])
		}); cut > minCut {
			return cut
		}
	}
	return end
}

func lastMatch(runes []rune, minCut, end int, match func([]rune, int) bool) int {
	for i := end; i > minCut; i-- {
		if match(runes, i) {
			return i
		}
	}
	return minCut
}

func isSentenceBreak(runes []rune, i int) bool {
	if i < 2 {
		return false
	}
	return unicode.IsSpace(runes[i-1]) && strings.ContainsRune(".!?", runes[i-2])
}

func isParagraphBreak(runes []rune, i int) bool {
	if i < 2 {
		return false
	}
	return runes[i-1] == '\n' && runes[i-2] == '\n'
}
