// Package handlers wires the service layer to the HTTP surface. Every error
// leaving this package is a stable {"error", "code"} JSON body.
package handlers

import (
	"encoding/json"
	"net/http"
)

// Error codes returned to clients. Frontends branch on these, so they are
// part of the API contract.
const (
	CodeValidation       = "validation_error"
	CodeAuthentication   = "authentication_error"
	CodeAuthorization    = "authorization_error"
	CodeNotFound         = "not_found"
	CodeInvalidState     = "invalid_state"
	CodeLinkInvalid      = "link_invalid"
	CodeClaimRequired    = "claim_required"
	CodeAlreadyProcessed = "already_processed"
	CodeInternal         = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return false
	}
	return true
}
