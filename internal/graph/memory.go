package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/pagination"
)

// MemoryStore is an in-memory graph backend for unit tests and local runs.
// WithTx takes the write lock for the whole transaction and restores a
// snapshot on failure, which gives the same all-or-nothing visibility as the
// database backends.
type MemoryStore struct {
	mu sync.RWMutex

	documents map[string]*domain.Document
	chunks    map[string]*domain.Chunk
	entities  map[string]*domain.Entity // keyed by domain.EntityKey

	// mentions holds MENTIONS edges keyed by chunk id, in insertion order.
	mentions map[string][]mentionEdge

	// docOrder preserves document insertion order for stable pagination
	// when CreatedAt values collide.
	docOrder []string
}

type mentionEdge struct {
	entityKey string
	start     int
	end       int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string]*domain.Chunk),
		entities:  make(map[string]*domain.Entity),
		mentions:  make(map[string][]mentionEdge),
	}
}

type memoryTx struct {
	s *MemoryStore
}

var _ Tx = (*memoryTx)(nil)

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memoryTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	documents map[string]*domain.Document
	chunks    map[string]*domain.Chunk
	entities  map[string]*domain.Entity
	mentions  map[string][]mentionEdge
	docOrder  []string
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		documents: make(map[string]*domain.Document, len(s.documents)),
		chunks:    make(map[string]*domain.Chunk, len(s.chunks)),
		entities:  make(map[string]*domain.Entity, len(s.entities)),
		mentions:  make(map[string][]mentionEdge, len(s.mentions)),
		docOrder:  append([]string(nil), s.docOrder...),
	}
	for k, v := range s.documents {
		cp := *v
		snap.documents[k] = &cp
	}
	for k, v := range s.chunks {
		cp := *v
		snap.chunks[k] = &cp
	}
	for k, v := range s.entities {
		cp := *v
		snap.entities[k] = &cp
	}
	for k, v := range s.mentions {
		snap.mentions[k] = append([]mentionEdge(nil), v...)
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.documents = snap.documents
	s.chunks = snap.chunks
	s.entities = snap.entities
	s.mentions = snap.mentions
	s.docOrder = snap.docOrder
}

func (t *memoryTx) PutDocument(ctx context.Context, doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	cp := *doc
	if _, exists := t.s.documents[doc.ID]; !exists {
		t.s.docOrder = append(t.s.docOrder, doc.ID)
	}
	t.s.documents[doc.ID] = &cp
	return nil
}

func (t *memoryTx) PutChunk(ctx context.Context, chunk *domain.Chunk) error {
	if err := domain.ValidateChunk(chunk); err != nil {
		return err
	}
	if _, ok := t.s.documents[chunk.DocumentID]; !ok {
		return domain.NewIntegrityError("chunk references missing document " + chunk.DocumentID)
	}
	cp := *chunk
	t.s.chunks[chunk.ID] = &cp
	return nil
}

func (t *memoryTx) PutEntityMention(ctx context.Context, em *domain.EntityMention) error {
	if _, ok := t.s.chunks[em.ChunkID]; !ok {
		return domain.NewIntegrityError("mention references missing chunk " + em.ChunkID)
	}
	if !domain.ValidEntityType(em.Entity.Type) {
		return domain.ErrInvalidEntityType
	}

	key := domain.EntityKey(em.Entity.Normalized, em.Entity.Type)
	if _, ok := t.s.entities[key]; !ok {
		ent := em.Entity
		if ent.ID == "" {
			ent.ID = uuid.NewString()
		}
		t.s.entities[key] = &ent
	}
	t.s.mentions[em.ChunkID] = append(t.s.mentions[em.ChunkID], mentionEdge{
		entityKey: key,
		start:     em.Start,
		end:       em.End,
	})
	return nil
}

func (t *memoryTx) DeleteDocument(ctx context.Context, documentID string) error {
	if _, ok := t.s.documents[documentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(t.s.documents, documentID)
	for i, id := range t.s.docOrder {
		if id == documentID {
			t.s.docOrder = append(t.s.docOrder[:i], t.s.docOrder[i+1:]...)
			break
		}
	}
	for id, c := range t.s.chunks {
		if c.DocumentID == documentID {
			delete(t.s.chunks, id)
			delete(t.s.mentions, id)
		}
	}
	t.s.pruneOrphanEntities()
	return nil
}

// pruneOrphanEntities drops entities that no chunk mentions anymore.
func (s *MemoryStore) pruneOrphanEntities() {
	referenced := make(map[string]bool)
	for _, edges := range s.mentions {
		for _, e := range edges {
			referenced[e.entityKey] = true
		}
	}
	for key := range s.entities {
		if !referenced[key] {
			delete(s.entities, key)
		}
	}
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) DocumentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.documents[id]
	return ok, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, cursor string, limit int) ([]*domain.Document, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 20
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if decoded != nil {
		for i, id := range s.docOrder {
			if id == decoded.LastID {
				start = i + 1
				break
			}
		}
	}

	page := make([]*domain.Document, 0, limit)
	for _, id := range s.docOrder[start:] {
		if len(page) == limit {
			break
		}
		cp := *s.documents[id]
		page = append(page, &cp)
	}

	next := pagination.CreateNextCursor(page, limit,
		func(d *domain.Document) string { return d.ID },
		func(d *domain.Document) time.Time { return d.CreatedAt },
	)
	return page, next, nil
}

func (s *MemoryStore) ChunksByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, domain.ErrDocumentNotFound
	}

	var chunks []*domain.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			cp := *c
			chunks = append(chunks, &cp)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (s *MemoryStore) ChunksByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]*domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			cp := *c
			chunks = append(chunks, &cp)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) EntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, domain.ErrDocumentNotFound
	}

	seen := make(map[string]bool)
	var entities []*domain.Entity
	for chunkID, edges := range s.mentions {
		c, ok := s.chunks[chunkID]
		if !ok || c.DocumentID != documentID {
			continue
		}
		for _, e := range edges {
			if seen[e.entityKey] {
				continue
			}
			seen[e.entityKey] = true
			cp := *s.entities[e.entityKey]
			entities = append(entities, &cp)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Type != entities[j].Type {
			return entities[i].Type < entities[j].Type
		}
		return entities[i].Normalized < entities[j].Normalized
	})
	return entities, nil
}

func (s *MemoryStore) ChunksMentioning(ctx context.Context, normalized string, entityType domain.EntityType, limit int) ([]*domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.EntityKey(normalized, entityType)
	var chunks []*domain.Chunk
	for chunkID, edges := range s.mentions {
		for _, e := range edges {
			if e.entityKey == key {
				cp := *s.chunks[chunkID]
				chunks = append(chunks, &cp)
				break
			}
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (s *MemoryStore) Traverse(ctx context.Context, startID string, rel Relationship, maxHops int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxHops < 1 {
		return nil, domain.ErrInvalidTraversalHops
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	adj := s.adjacency(rel)
	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	var reached []string

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			for _, nb := range adj[node] {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				reached = append(reached, nb)
				next = append(next, nb)
			}
		}
		frontier = next
	}
	sort.Strings(reached)
	return reached, nil
}

// adjacency builds an undirected neighbor map for the chosen relationship.
func (s *MemoryStore) adjacency(rel Relationship) map[string][]string {
	adj := make(map[string][]string)
	add := func(a, b string) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	if rel == RelContains || rel == RelAny {
		for _, c := range s.chunks {
			add(c.DocumentID, c.ID)
		}
	}
	if rel == RelMentions || rel == RelAny {
		for chunkID, edges := range s.mentions {
			for _, e := range edges {
				add(s.entities[e.entityKey].ID, chunkID)
			}
		}
	}
	return adj
}

func (s *MemoryStore) ChunkIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		Documents:      len(s.documents),
		Chunks:         len(s.chunks),
		Entities:       len(s.entities),
		ContainsEdges:  len(s.chunks),
		EntitiesByType: make(map[domain.EntityType]int),
	}
	for _, edges := range s.mentions {
		stats.MentionsEdges += len(edges)
	}
	for _, e := range s.entities {
		stats.EntitiesByType[e.Type]++
	}
	return stats, nil
}
