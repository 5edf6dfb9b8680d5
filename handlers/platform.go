package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"exportdesk/services/platform"
)

// PlatformHandler exposes the operator back office.
type PlatformHandler struct {
	platform *platform.Service
}

// NewPlatformHandler creates a new platform handler.
func NewPlatformHandler(svc *platform.Service) *PlatformHandler {
	return &PlatformHandler{platform: svc}
}

// Login authenticates a platform admin.
func (h *PlatformHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.platform.Login(req.Email, req.Password)
	if err != nil {
		switch err {
		case platform.ErrNotPlatformAdmin:
			writeError(w, http.StatusForbidden, CodeAuthorization, "platform admin required")
		case platform.ErrInvalidCredentials:
			writeError(w, http.StatusUnauthorized, CodeAuthentication, "invalid email or password")
		default:
			writeError(w, http.StatusInternalServerError, CodeInternal, "login failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// Stats returns the dashboard aggregates.
func (h *PlatformHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.platform.DashboardStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListOrganizations returns every organization.
func (h *PlatformHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.platform.ListOrganizations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list organizations")
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

// CreateOrganization registers an organization.
func (h *PlatformHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req platform.OrgInput
	if !decodeJSON(w, r, &req) {
		return
	}

	org, err := h.platform.CreateOrganization(req)
	if err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// UpdateOrganization edits an organization.
func (h *PlatformHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req platform.OrgInput
	if !decodeJSON(w, r, &req) {
		return
	}

	org, err := h.platform.UpdateOrganization(mux.Vars(r)["id"], req)
	if err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// DeleteOrganization removes an organization.
func (h *PlatformHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if err := h.platform.DeleteOrganization(mux.Vars(r)["id"]); err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListUsers returns every tenant user.
func (h *PlatformHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.platform.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser registers a tenant user. The response carries the generated
// initial password exactly once when none was supplied.
func (h *PlatformHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req platform.UserInput
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.platform.CreateUser(req)
	if err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateUserRequest carries admin edits to a user.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"isActive"`
}

// UpdateUser edits a tenant user.
func (h *PlatformHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.platform.UpdateUser(mux.Vars(r)["id"], req.Name, req.Role, req.IsActive)
	if err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a tenant user.
func (h *PlatformHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.platform.DeleteUser(mux.Vars(r)["id"]); err != nil {
		writePlatformError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetConfig returns the system configuration map.
func (h *PlatformHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.platform.Config()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SetConfig upserts configuration keys.
func (h *PlatformHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}

	for key, value := range req {
		if err := h.platform.SetConfig(key, value); err != nil {
			writePlatformError(w, err)
			return
		}
	}
	cfg, err := h.platform.Config()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func writePlatformError(w http.ResponseWriter, err error) {
	switch err {
	case platform.ErrOrgNotFound, platform.ErrUserNotFound:
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case platform.ErrEmailTaken, platform.ErrNameRequired:
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "platform operation failed")
	}
}
