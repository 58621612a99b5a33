package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Document represents one ingested source. It is created once at ingestion
// start and is immutable afterwards, except for the replace/delete lifecycle.
type Document struct {
	ID        string
	Source    string // original path or identifier
	Metadata  map[string]string
	Length    int // raw text length in runes
	CreatedAt time.Time
}

// Chunk is a contiguous span of a document's text, the unit of embedding and
// retrieval. Offsets are rune offsets into the original document text.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Start      int
	End        int
}

// NewDocument creates a Document. When id is empty it is derived from the
// content hash so that re-ingesting identical content maps to the same node.
func NewDocument(id, source, content string, metadata map[string]string) *Document {
	if id == "" {
		id = ContentID(content)
	}
	return &Document{
		ID:        id,
		Source:    source,
		Metadata:  metadata,
		Length:    len([]rune(content)),
		CreatedAt: time.Now().UTC(),
	}
}

// ContentID derives a stable document id from the raw text.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "doc_" + hex.EncodeToString(sum[:16])
}

// ChunkID builds the deterministic id for a chunk within its document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if strings.ContainsAny(d.ID, " \t\n") {
		return fmt.Errorf("document ID must not contain whitespace: %q", d.ID)
	}
	return nil
}

// ValidateChunk validates a Chunk instance.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk Index must be >= 0")
	}
	if c.End < c.Start {
		return fmt.Errorf("chunk offset range is inverted: [%d,%d)", c.Start, c.End)
	}
	return nil
}
