package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/synapse-hq/synapse/internal/api"
	"github.com/synapse-hq/synapse/internal/graph"
)

// GraphReader exposes the graph operations served directly from the store.
type GraphReader interface {
	Traverse(ctx context.Context, startID string, rel graph.Relationship, maxHops int) ([]string, error)
	Stats(ctx context.Context) (*graph.Stats, error)
}

type GraphHandler struct {
	store GraphReader
}

func NewGraphHandler(store GraphReader) *GraphHandler {
	return &GraphHandler{store: store}
}

type TraverseResponse struct {
	StartID      string   `json:"start_id"`
	Relationship string   `json:"relationship"`
	MaxHops      int      `json:"max_hops"`
	NodeIDs      []string `json:"node_ids"`
}

func (h *GraphHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	startID := r.URL.Query().Get("start")
	if startID == "" {
		api.Error(w, http.StatusBadRequest, "start is required")
		return
	}

	rel := graph.RelAny
	switch strings.ToUpper(r.URL.Query().Get("relationship")) {
	case "":
	case string(graph.RelContains):
		rel = graph.RelContains
	case string(graph.RelMentions):
		rel = graph.RelMentions
	case string(graph.RelAny):
	default:
		api.Error(w, http.StatusBadRequest, "relationship must be CONTAINS, MENTIONS or ANY")
		return
	}

	maxHops := 1
	if hopsStr := r.URL.Query().Get("max_hops"); hopsStr != "" {
		parsed, err := strconv.Atoi(hopsStr)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "max_hops must be an integer")
			return
		}
		maxHops = parsed
	}

	nodeIDs, err := h.store.Traverse(r.Context(), startID, rel, maxHops)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, TraverseResponse{
		StartID:      startID,
		Relationship: string(rel),
		MaxHops:      maxHops,
		NodeIDs:      nodeIDs,
	})
}

func (h *GraphHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}
