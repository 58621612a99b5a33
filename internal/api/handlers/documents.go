package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/synapse-hq/synapse/internal/api"
	"github.com/synapse-hq/synapse/internal/domain"
)

// DocumentReader is the read surface of the graph store used by this handler.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, cursor string, limit int) ([]*domain.Document, string, error)
	ChunksByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
	EntitiesByDocument(ctx context.Context, documentID string) ([]*domain.Entity, error)
}

// DocumentDeleter removes a document from every store.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

type DocumentHandler struct {
	reader  DocumentReader
	deleter DocumentDeleter
}

func NewDocumentHandler(reader DocumentReader, deleter DocumentDeleter) *DocumentHandler {
	return &DocumentHandler{reader: reader, deleter: deleter}
}

type DocumentResponse struct {
	ID        string            `json:"id"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Length    int               `json:"length"`
	CreatedAt string            `json:"created_at"`
}

type ChunkResponse struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	Content     string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

type EntityResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Normalized string `json:"normalized"`
}

type DocumentDetailResponse struct {
	DocumentResponse
	Chunks   []*ChunkResponse  `json:"chunks"`
	Entities []*EntityResponse `json:"entities"`
}

type DocumentListResponse struct {
	Items  []*DocumentResponse `json:"items"`
	Cursor string              `json:"cursor,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        d.ID,
		Source:    d.Source,
		Metadata:  d.Metadata,
		Length:    d.Length,
		CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	docs, next, err := h.reader.ListDocuments(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{Items: items, Cursor: next})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.reader.GetDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	chunks, err := h.reader.ChunksByDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	entities, err := h.reader.EntitiesByDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &DocumentDetailResponse{
		DocumentResponse: *documentToResponse(doc),
		Chunks:           make([]*ChunkResponse, len(chunks)),
		Entities:         make([]*EntityResponse, len(entities)),
	}
	for i, c := range chunks {
		resp.Chunks[i] = &ChunkResponse{
			ID:          c.ID,
			Index:       c.Index,
			Content:     c.Content,
			StartOffset: c.Start,
			EndOffset:   c.End,
		}
	}
	for i, e := range entities {
		resp.Entities[i] = &EntityResponse{
			ID:         e.ID,
			Name:       e.Name,
			Type:       string(e.Type),
			Normalized: e.Normalized,
		}
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.deleter.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
