package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"exportdesk/services/accounts"
)

// ClaimHandler handles the public account claim endpoints.
type ClaimHandler struct {
	accounts *accounts.Service
}

// NewClaimHandler creates a new claim handler.
func NewClaimHandler(accountsSvc *accounts.Service) *ClaimHandler {
	return &ClaimHandler{accounts: accountsSvc}
}

// Verify previews the identity behind a claim token.
func (h *ClaimHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	preview, err := h.accounts.VerifyClaim(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "claim token is invalid or already used")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ClaimRequest is the body completing an account claim.
type ClaimRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Claim sets the user's password and activates the account.
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req ClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.accounts.Claim(token, req.Name, req.Password)
	if err != nil {
		switch err {
		case accounts.ErrPasswordTooShort:
			writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		case accounts.ErrClaimInvalid:
			writeError(w, http.StatusBadRequest, CodeValidation, "claim token is invalid or already used")
		default:
			writeError(w, http.StatusInternalServerError, CodeInternal, "claim failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, session)
}
