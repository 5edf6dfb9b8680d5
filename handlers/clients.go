package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"exportdesk/internal/auth"
	"exportdesk/services/directory"
)

// ClientsHandler exposes the per-tenant address book of business partners.
type ClientsHandler struct {
	directory *directory.Service
}

// NewClientsHandler creates a new clients handler.
func NewClientsHandler(dir *directory.Service) *ClientsHandler {
	return &ClientsHandler{directory: dir}
}

// List returns the caller's address book.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	partners, err := h.directory.Partners(auth.GetOrgID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list partners")
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

// Add links a counterpart into the caller's address book, creating a shadow
// organization when it is new to the platform.
func (h *ClientsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req directory.PartnerInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.directory.AddPartner(auth.GetOrgID(r), req)
	if err != nil {
		switch err {
		case directory.ErrNameRequired, directory.ErrCountryRequired:
			writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		case directory.ErrNoOrganization:
			writeError(w, http.StatusForbidden, CodeAuthorization, "user has no organization")
		default:
			writeError(w, http.StatusInternalServerError, CodeInternal, "failed to add partner")
		}
		return
	}

	status := http.StatusCreated
	if res.WasExisting {
		status = http.StatusOK
	}
	writeJSON(w, status, res.Organization)
}

// Get returns one address-book entry.
func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	partner, err := h.directory.Partner(auth.GetOrgID(r), mux.Vars(r)["id"])
	if err != nil {
		if err == directory.ErrPartnerNotFound {
			writeError(w, http.StatusNotFound, CodeNotFound, "partner not found")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load partner")
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

// Emails suggests buyer emails previously used with a partner, scoped to
// the caller's own shipments.
func (h *ClientsHandler) Emails(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.directory.PartnerEmails(auth.GetOrgID(r), mux.Vars(r)["id"])
	if err != nil {
		if err == directory.ErrPartnerNotFound {
			writeError(w, http.StatusNotFound, CodeNotFound, "partner not found")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []directory.ContactSuggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}
