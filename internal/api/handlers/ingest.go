package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/synapse-hq/synapse/internal/api"
	"github.com/synapse-hq/synapse/internal/ingest"
)

type IngestService interface {
	IngestDocument(ctx context.Context, input ingest.IngestInput) (*ingest.IngestionResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestRequest struct {
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Replace    bool              `json:"replace"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	input := ingest.IngestInput{
		DocumentID: req.DocumentID,
		Source:     req.Source,
		Content:    req.Content,
		Metadata:   req.Metadata,
		Replace:    req.Replace,
	}

	result, err := h.svc.IngestDocument(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}
