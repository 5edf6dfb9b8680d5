package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"exportdesk/api"
	"exportdesk/services/signatures"
)

// SignHandler exposes the public magic-link signing endpoints. No session
// auth: the link token is the credential.
type SignHandler struct {
	signatures *signatures.Service
}

// NewSignHandler creates a new sign handler.
func NewSignHandler(svc *signatures.Service) *SignHandler {
	return &SignHandler{signatures: svc}
}

// View renders the signing page snapshot for a magic link.
func (h *SignHandler) View(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := h.signatures.View(vars["shipmentID"], vars["token"])
	if err != nil {
		writeSignError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit records an approve or reject decision.
func (h *SignHandler) Submit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req signatures.SubmitInput
	if !decodeJSON(w, r, &req) {
		return
	}
	req.IPAddress = api.ClientIP(r)
	req.UserAgent = r.Header.Get("User-Agent")

	outcome, err := h.signatures.Submit(vars["shipmentID"], vars["token"], req)
	if err != nil {
		writeSignError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeSignError(w http.ResponseWriter, err error) {
	switch err {
	case signatures.ErrLinkInvalid:
		writeError(w, http.StatusForbidden, CodeLinkInvalid, "signature link is invalid, expired or already used")
	case signatures.ErrClaimRequired:
		writeError(w, http.StatusForbidden, CodeClaimRequired, "account must be claimed before signing")
	case signatures.ErrAlreadyProcessed:
		writeError(w, http.StatusBadRequest, CodeAlreadyProcessed, "shipment has already been processed")
	case signatures.ErrNameRequired, signatures.ErrCommentRequired, signatures.ErrUnknownAction:
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "signature operation failed")
	}
}
