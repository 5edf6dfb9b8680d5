package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"exportdesk/internal/auth"
	"exportdesk/services/shipments"
)

// ShipmentsHandler exposes the shipment lifecycle endpoints.
type ShipmentsHandler struct {
	shipments *shipments.Service
}

// NewShipmentsHandler creates a new shipments handler.
func NewShipmentsHandler(svc *shipments.Service) *ShipmentsHandler {
	return &ShipmentsHandler{shipments: svc}
}

// writeShipmentError maps service errors onto the API error contract.
func writeShipmentError(w http.ResponseWriter, err error) {
	switch err {
	case shipments.ErrNotFound:
		writeError(w, http.StatusNotFound, CodeNotFound, "shipment not found")
	case shipments.ErrForbidden:
		writeError(w, http.StatusForbidden, CodeAuthorization, "shipment does not belong to your organization")
	case shipments.ErrInvalidState:
		writeError(w, http.StatusBadRequest, CodeInvalidState, "operation not allowed in the shipment's current status")
	case shipments.ErrInvalidIncoterm, shipments.ErrNoItems, shipments.ErrBadQuantity,
		shipments.ErrBadPrice, shipments.ErrNotAPartner, shipments.ErrMissingContact,
		shipments.ErrNoBuyer:
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case shipments.ErrItemNotFound:
		writeError(w, http.StatusNotFound, CodeNotFound, "sales item not found")
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "shipment operation failed")
	}
}

// List returns the shipments visible to the caller's organization.
func (h *ShipmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.shipments.List(auth.GetOrgID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list shipments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create registers a new shipment.
func (h *ShipmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req shipments.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	shipment, err := h.shipments.Create(auth.GetOrgID(r), auth.GetUserID(r), req)
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shipment)
}

// Get returns one shipment.
func (h *ShipmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.shipments.Get(mux.Vars(r)["id"], auth.GetOrgID(r))
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

// Confirmation returns the sales confirmation snapshot.
func (h *ShipmentsHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := h.shipments.Confirmation(mux.Vars(r)["id"], auth.GetOrgID(r))
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

// SendForSignatureResponse hands the caller the minted link alongside the
// confirmation message, matching what the notification email carries.
type SendForSignatureResponse struct {
	Message      string    `json:"message"`
	MagicLinkURL string    `json:"magic_link_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SendForSignature issues a magic link and emails it to the buyer.
func (h *ShipmentsHandler) SendForSignature(w http.ResponseWriter, r *http.Request) {
	res, err := h.shipments.SendForSignature(mux.Vars(r)["id"], auth.GetOrgID(r))
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendForSignatureResponse{
		Message:      "sales confirmation sent to buyer",
		MagicLinkURL: res.MagicLinkURL,
		ExpiresAt:    res.ExpiresAt,
	})
}

// AddItem appends a sales line.
func (h *ShipmentsHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req shipments.ItemInput
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.shipments.AddItem(mux.Vars(r)["id"], auth.GetOrgID(r), req)
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem replaces a sales line.
func (h *ShipmentsHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req shipments.ItemInput
	if !decodeJSON(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	item, err := h.shipments.UpdateItem(vars["id"], vars["itemID"], auth.GetOrgID(r), req)
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem removes a sales line.
func (h *ShipmentsHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.shipments.DeleteItem(vars["id"], vars["itemID"], auth.GetOrgID(r)); err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UpdateLogistics writes booking details onto a signed shipment.
func (h *ShipmentsHandler) UpdateLogistics(w http.ResponseWriter, r *http.Request) {
	var req shipments.LogisticsInput
	if !decodeJSON(w, r, &req) {
		return
	}

	shipment, err := h.shipments.UpdateLogistics(mux.Vars(r)["id"], auth.GetOrgID(r), req)
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

// Advance moves the shipment one step through the execution states.
func (h *ShipmentsHandler) Advance(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.shipments.Advance(mux.Vars(r)["id"], auth.GetOrgID(r))
	if err != nil {
		writeShipmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}
