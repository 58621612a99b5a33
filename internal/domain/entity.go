package domain

import (
	"fmt"
	"strings"
)

// EntityType is the enumerated type tag of an extracted entity.
type EntityType string

const (
	EntityTypePerson  EntityType = "PERSON"
	EntityTypeOrg     EntityType = "ORG"
	EntityTypeGPE     EntityType = "GPE"
	EntityTypeProduct EntityType = "PRODUCT"
	EntityTypeDate    EntityType = "DATE"
	EntityTypeMoney   EntityType = "MONEY"
	EntityTypeOther   EntityType = "OTHER"
)

// Entity is a typed, de-duplicated reference to a real-world person, org,
// place, and so on. Entities are shared across chunks and documents: the same
// (normalized, type) pair always resolves to one node.
type Entity struct {
	ID         string
	Name       string // canonical surface form
	Type       EntityType
	Normalized string
}

// Mention records one occurrence of an entity inside a chunk. Start and End
// are rune offsets into the chunk text; the chunk text at [Start,End) must
// equal the mention's surface form.
type Mention struct {
	Surface string
	Type    EntityType
	Start   int
	End     int
}

// EntityMention pairs a resolved entity with the chunk occurrence that
// grounds it. The MENTIONS edge direction is Entity mentioned-in Chunk.
type EntityMention struct {
	Entity  Entity
	ChunkID string
	Start   int
	End     int
}

// NormalizeEntity produces the de-duplication key text for a surface form:
// lowercased, whitespace-collapsed, trailing punctuation stripped.
func NormalizeEntity(surface string) string {
	s := strings.Join(strings.Fields(surface), " ")
	s = strings.TrimRight(s, ".,;:")
	return strings.ToLower(s)
}

// EntityKey is the store-wide unique key for entity de-duplication.
func EntityKey(normalized string, t EntityType) string {
	return string(t) + ":" + normalized
}

// ValidEntityType reports whether t is one of the enumerated entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypePerson, EntityTypeOrg, EntityTypeGPE, EntityTypeProduct,
		EntityTypeDate, EntityTypeMoney, EntityTypeOther:
		return true
	}
	return false
}

// ValidateMention checks that a mention's span actually grounds its surface
// form in the given chunk text.
func ValidateMention(chunkText string, m Mention) error {
	runes := []rune(chunkText)
	if m.Start < 0 || m.End > len(runes) || m.Start >= m.End {
		return fmt.Errorf("mention span [%d,%d) out of range for chunk of length %d", m.Start, m.End, len(runes))
	}
	if got := string(runes[m.Start:m.End]); got != m.Surface {
		return fmt.Errorf("mention surface %q does not match chunk text %q at [%d,%d)", m.Surface, got, m.Start, m.End)
	}
	if !ValidEntityType(m.Type) {
		return fmt.Errorf("mention type is invalid: %s", m.Type)
	}
	return nil
}
