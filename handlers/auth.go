package handlers

import (
	"net/http"

	"exportdesk/internal/auth"
	"exportdesk/services/accounts"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	accounts *accounts.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc *accounts.Service) *AuthHandler {
	return &AuthHandler{accounts: accountsSvc}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a session/refresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.accounts.Login(req.Email, req.Password)
	if err != nil {
		switch err {
		case accounts.ErrAccountPending:
			writeError(w, http.StatusForbidden, CodeClaimRequired, "account has not been claimed yet")
		case accounts.ErrAccountDisabled:
			writeError(w, http.StatusForbidden, CodeAuthorization, "account is disabled")
		case accounts.ErrInvalidCredentials:
			writeError(w, http.StatusUnauthorized, CodeAuthentication, "invalid email or password")
		default:
			writeError(w, http.StatusInternalServerError, CodeInternal, "login failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// RefreshRequest carries the refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh trades a refresh token for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.accounts.Refresh(req.RefreshToken)
	if err != nil {
		if err == accounts.ErrRefreshInvalid {
			writeError(w, http.StatusUnauthorized, CodeAuthentication, "invalid or expired refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Logout revokes the presented refresh token. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.accounts.Logout(req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user and organization.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, org, err := h.accounts.Me(auth.GetUserID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"organization": org,
	})
}
