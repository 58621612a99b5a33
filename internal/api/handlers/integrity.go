package handlers

import (
	"context"
	"net/http"

	"github.com/synapse-hq/synapse/internal/api"
	"github.com/synapse-hq/synapse/internal/integrity"
)

type IntegrityService interface {
	Check(ctx context.Context) (*integrity.Report, error)
	Reconcile(ctx context.Context) ([]string, error)
}

type IntegrityHandler struct {
	svc IntegrityService
}

func NewIntegrityHandler(svc IntegrityService) *IntegrityHandler {
	return &IntegrityHandler{svc: svc}
}

type IntegrityCheckResponse struct {
	Clean  bool              `json:"clean"`
	Report *integrity.Report `json:"report"`
}

type ReconcileResponse struct {
	RepairedChunkIDs []string `json:"repaired_chunk_ids"`
}

func (h *IntegrityHandler) Check(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Check(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, IntegrityCheckResponse{Clean: report.Clean(), Report: report})
}

func (h *IntegrityHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.svc.Reconcile(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if repaired == nil {
		repaired = []string{}
	}

	api.Success(w, http.StatusOK, ReconcileResponse{RepairedChunkIDs: repaired})
}
