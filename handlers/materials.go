package handlers

import (
	"net/http"

	"exportdesk/services/materials"
)

// MaterialsHandler serves the read-only product catalog.
type MaterialsHandler struct {
	materials *materials.Service
}

// NewMaterialsHandler creates a new materials handler.
func NewMaterialsHandler(svc *materials.Service) *MaterialsHandler {
	return &MaterialsHandler{materials: svc}
}

// List returns the catalog, optionally filtered by ?category=.
func (h *MaterialsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.materials.List(r.URL.Query().Get("category")))
}
