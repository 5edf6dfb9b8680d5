package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"exportdesk/handlers"
	"exportdesk/models"
	"exportdesk/services/directory"
	"exportdesk/services/shipments"
)

func TestClientsAdd_NewPartnerCreated(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	req := jsonRequest(t, http.MethodPost, "/clients", directory.PartnerInput{
		Name:         "Busan Marine Co",
		Country:      "KR",
		ContactEmail: "trade@busanmarine.kr",
	})
	rec := httptest.NewRecorder()
	handler.Add(rec, asUser(req, e.admin))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var org models.Organization
	decodeBody(t, rec, &org)
	if org.Status != models.OrgStatusUnclaimed {
		t.Errorf("expected shadow org UNCLAIMED, got %s", org.Status)
	}
	if org.Type != models.OrgTypeImporter {
		t.Errorf("expected IMPORTER, got %s", org.Type)
	}
}

func TestClientsAdd_ExistingPartnerReturns200(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	req := jsonRequest(t, http.MethodPost, "/clients", directory.PartnerInput{
		Name:    e.buyer.Name,
		Country: "JP",
	})
	rec := httptest.NewRecorder()
	handler.Add(rec, asUser(req, e.admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for existing partner, got %d: %s", rec.Code, rec.Body.String())
	}

	var org models.Organization
	decodeBody(t, rec, &org)
	if org.ID != e.buyer.ID {
		t.Error("expected the existing buyer organization")
	}
}

func TestClientsAdd_Validation(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	req := jsonRequest(t, http.MethodPost, "/clients", directory.PartnerInput{Country: "KR"})
	rec := httptest.NewRecorder()
	handler.Add(rec, asUser(req, e.admin))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != handlers.CodeValidation {
		t.Errorf("expected code %s, got %s", handlers.CodeValidation, code)
	}
}

func TestClientsList(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, asUser(req, e.admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var partners []struct {
		Organization models.Organization `json:"organization"`
	}
	decodeBody(t, rec, &partners)
	if len(partners) != 1 || partners[0].Organization.ID != e.buyer.ID {
		t.Errorf("expected exactly the seeded buyer, got %+v", partners)
	}
}

func TestClientsGet_UnrelatedPartner404(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	stranger := &models.Organization{
		Name:    "Unrelated Org",
		Country: "US",
		Type:    models.OrgTypeImporter,
		Status:  models.OrgStatusActive,
	}
	if err := e.orgs.Create(stranger); err != nil {
		t.Fatalf("failed to create org: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/clients/"+stranger.ID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": stranger.ID})
	rec := httptest.NewRecorder()
	handler.Get(rec, asUser(req, e.admin))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != handlers.CodeNotFound {
		t.Errorf("expected code %s, got %s", handlers.CodeNotFound, code)
	}
}

func TestClientsEmails_EmptyIsJSONArray(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	req := httptest.NewRequest(http.MethodGet, "/clients/"+e.buyer.ID+"/emails", nil)
	req = mux.SetURLVars(req, map[string]string{"id": e.buyer.ID})
	rec := httptest.NewRecorder()
	handler.Emails(rec, asUser(req, e.admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestClientsEmails_SuggestsShipmentContacts(t *testing.T) {
	e := setupEnv(t)
	handler := handlers.NewClientsHandler(e.directory)

	if _, err := e.shipments.Create(e.seller.ID, e.admin.ID, shipments.CreateInput{
		BuyerOrgID: e.buyer.ID,
		BuyerEmail: "kenji@tokyofish.jp",
		Incoterm:   "FOB",
		Currency:   "USD",
		Items: []shipments.ItemInput{
			{SKU: "SKU-101", Description: "Salmón Atlántico Entero HG", Price: "8.50", Quantity: 100},
		},
	}); err != nil {
		t.Fatalf("failed to create shipment: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/clients/"+e.buyer.ID+"/emails", nil)
	req = mux.SetURLVars(req, map[string]string{"id": e.buyer.ID})
	rec := httptest.NewRecorder()
	handler.Emails(rec, asUser(req, e.admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var suggestions []directory.ContactSuggestion
	decodeBody(t, rec, &suggestions)
	if len(suggestions) != 1 || suggestions[0].Email != "kenji@tokyofish.jp" {
		t.Errorf("expected the shipment buyer email suggested, got %+v", suggestions)
	}
}
