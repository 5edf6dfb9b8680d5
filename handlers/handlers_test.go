package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
	"exportdesk/models"
	"exportdesk/services/accounts"
	"exportdesk/services/directory"
	"exportdesk/services/platform"
	"exportdesk/services/shipments"
	"exportdesk/services/signatures"
)

// recordingNotifier captures queued sales confirmation mails instead of
// sending them.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []queuedMail
}

type queuedMail struct {
	To         string
	ShipmentID string
	Token      string
}

func (n *recordingNotifier) QueueSalesConfirmation(to, sellerName, shipmentRef, shipmentID, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, queuedMail{To: to, ShipmentID: shipmentID, Token: token})
}

func (n *recordingNotifier) SigningURL(shipmentID, token string) string {
	return "https://app.test/sign/" + shipmentID + "/" + token
}

func (n *recordingNotifier) last(t *testing.T) queuedMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		t.Fatal("expected at least one queued mail")
	}
	return n.sends[len(n.sends)-1]
}

// env wires the full service graph over a temp database, the way main does,
// plus a seeded exporter tenant with one active admin user and one partner.
type env struct {
	orgs       *database.OrganizationRepository
	users      *database.UserRepository
	links      *database.MagicLinkRepository
	accounts   *accounts.Service
	directory  *directory.Service
	shipments  *shipments.Service
	signatures *signatures.Service
	platform   *platform.Service
	notifier   *recordingNotifier
	issuer     *auth.Issuer

	seller *models.Organization
	buyer  *models.Organization
	admin  *models.User
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conn := db.Connection()
	orgs := database.NewOrganizationRepository(conn)
	users := database.NewUserRepository(conn)
	relations := database.NewRelationRepository(conn)
	shipRepo := database.NewShipmentRepository(conn)
	links := database.NewMagicLinkRepository(conn)
	sigRepo := database.NewSignatureRepository(conn)
	tokens := database.NewTokenRepository(conn)
	configRepo := database.NewSysConfigRepository(conn)

	issuer := auth.NewIssuer("test-signing-secret")
	notifier := &recordingNotifier{}

	dirSvc := directory.NewService(orgs, users, relations, shipRepo, nil)
	accountsSvc := accounts.NewService(users, orgs, tokens, issuer, time.Hour, 24*time.Hour, nil)
	shipmentsSvc := shipments.NewService(shipRepo, orgs, relations, links, dirSvc, notifier, 7*24*time.Hour, nil)
	signaturesSvc := signatures.NewService(links, sigRepo, shipRepo, users, shipmentsSvc, issuer, nil)
	platformSvc := platform.NewService(orgs, users, shipRepo, configRepo, issuer, nil)

	e := &env{
		orgs:       orgs,
		users:      users,
		links:      links,
		accounts:   accountsSvc,
		directory:  dirSvc,
		shipments:  shipmentsSvc,
		signatures: signaturesSvc,
		platform:   platformSvc,
		notifier:   notifier,
		issuer:     issuer,
	}

	e.seller = &models.Organization{
		Name:      "Austral Seafoods SpA",
		Country:   "CL",
		Type:      models.OrgTypeExporter,
		Status:    models.OrgStatusActive,
		RefPrefix: "AUS",
	}
	if err := orgs.Create(e.seller); err != nil {
		t.Fatalf("failed to create seller: %v", err)
	}
	e.admin = e.createUser(t, "ops@austral.cl", "correct-horse", e.seller.ID)

	res, err := dirSvc.AddPartner(e.seller.ID, directory.PartnerInput{
		Name:         "Tokyo Fish Trading KK",
		Country:      "JP",
		ContactEmail: "imports@tokyofish.jp",
	})
	if err != nil {
		t.Fatalf("failed to add partner: %v", err)
	}
	e.buyer = res.Organization
	return e
}

func (e *env) createUser(t *testing.T, email, password, orgID string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Email:          email,
		Name:           "Test User",
		OrganizationID: orgID,
		Role:           models.RoleAdmin,
		PasswordHash:   string(hash),
		IsActive:       true,
	}
	if err := e.users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// createShipment seeds a shipment owned by the seller tenant.
func (e *env) createShipment(t *testing.T) *models.Shipment {
	t.Helper()
	shipment, err := e.shipments.Create(e.seller.ID, e.admin.ID, shipments.CreateInput{
		BuyerOrgID:      e.buyer.ID,
		Incoterm:        "CIF",
		DestinationPort: "Tokyo",
		Currency:        "USD",
		Items: []shipments.ItemInput{
			{SKU: "SKU-102", Description: "Salmón Filete Trim D", Price: "12.00", Quantity: 1500},
		},
	})
	if err != nil {
		t.Fatalf("failed to create shipment: %v", err)
	}
	return shipment
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser injects the session context the auth middleware would set.
func asUser(r *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(r.Context(), auth.ContextKeyUserID, user.ID)
	ctx = context.WithValue(ctx, auth.ContextKeyOrgID, user.OrganizationID)
	return r.WithContext(ctx)
}

// decodeBody unmarshals a recorded response body.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// errorCode pulls the stable error code out of an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["code"]
}
