package signatures

import (
	"path/filepath"
	"testing"
	"time"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
	"exportdesk/models"
	"exportdesk/services/directory"
	"exportdesk/services/shipments"
)

type noopNotifier struct{}

func (noopNotifier) QueueSalesConfirmation(to, sellerName, shipmentRef, shipmentID, token string) {}

func (noopNotifier) SigningURL(shipmentID, token string) string {
	return "https://app.test/sign/" + shipmentID + "/" + token
}

type fixture struct {
	svc      *Service
	shipSvc  *shipments.Service
	orgs     *database.OrganizationRepository
	users    *database.UserRepository
	shipRepo *database.ShipmentRepository
	links    *database.MagicLinkRepository
	issuer   *auth.Issuer
	seller   *models.Organization
	buyer    *models.Organization
	creator  *models.User
}

func setupTestService(t *testing.T) *fixture {
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
	sigs := database.NewSignatureRepository(conn)
	issuer := auth.NewIssuer("test-signing-secret")

	seller := &models.Organization{
		Name:    "Austral Seafoods SpA",
		Country: "CL",
		Type:    models.OrgTypeExporter,
		Status:  models.OrgStatusActive,
	}
	if err := orgs.Create(seller); err != nil {
		t.Fatalf("failed to create seller: %v", err)
	}
	buyer := &models.Organization{
		Name:         "Tokyo Fish Trading KK",
		Country:      "JP",
		Type:         models.OrgTypeImporter,
		Status:       models.OrgStatusUnclaimed,
		ContactEmail: "imports@tokyofish.jp",
	}
	if err := orgs.Create(buyer); err != nil {
		t.Fatalf("failed to create buyer: %v", err)
	}
	if err := relations.Create(&models.BusinessRelation{
		HostOrgID:    seller.ID,
		PartnerOrgID: buyer.ID,
		Alias:        "Tokyo Fish",
	}); err != nil {
		t.Fatalf("failed to create relation: %v", err)
	}

	creator := &models.User{
		Email:          "ops@austral.cl",
		Name:           "Ops Austral",
		OrganizationID: seller.ID,
		IsActive:       true,
	}
	if err := users.Create(creator); err != nil {
		t.Fatalf("failed to create creator user: %v", err)
	}

	dir := directory.NewService(orgs, users, relations, shipRepo, nil)
	shipSvc := shipments.NewService(shipRepo, orgs, relations, links, dir, noopNotifier{}, 7*24*time.Hour, nil)
	svc := NewService(links, sigs, shipRepo, users, shipSvc, issuer, nil)

	return &fixture{
		svc:      svc,
		shipSvc:  shipSvc,
		orgs:     orgs,
		users:    users,
		shipRepo: shipRepo,
		links:    links,
		issuer:   issuer,
		seller:   seller,
		buyer:    buyer,
		creator:  creator,
	}
}

// sendShipment creates a shipment and sends it for signature, returning the
// shipment and the active link token.
func (f *fixture) sendShipment(t *testing.T) (*models.Shipment, string) {
	t.Helper()

	shipment, err := f.shipSvc.Create(f.seller.ID, f.creator.ID, shipments.CreateInput{
		BuyerOrgID: f.buyer.ID,
		Incoterm:   "FOB",
		Currency:   "USD",
		Items: []shipments.ItemInput{
			{SKU: "SKU-101", Description: "Salmón Atlántico Entero HG", Price: "8.50", Quantity: 1000},
		},
	})
	if err != nil {
		t.Fatalf("create shipment failed: %v", err)
	}
	if _, err := f.shipSvc.SendForSignature(shipment.ID, f.seller.ID); err != nil {
		t.Fatalf("send for signature failed: %v", err)
	}
	link, err := f.links.ActiveForShipment(shipment.ID)
	if err != nil {
		t.Fatalf("no active link: %v", err)
	}
	return shipment, link.Token
}

func (f *fixture) claimBuyer(t *testing.T) {
	t.Helper()
	if err := f.orgs.ActivateIfUnclaimed(f.buyer.ID); err != nil {
		t.Fatalf("failed to activate buyer: %v", err)
	}
}

func TestView_UnclaimedBuyerGetsClaimToken(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)

	view, err := f.svc.View(shipment.ID, token)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.CanSign {
		t.Error("unclaimed buyer must not be able to sign yet")
	}
	if !view.ClaimRequired {
		t.Error("expected claimRequired for UNCLAIMED buyer")
	}
	if view.ClaimToken == "" {
		t.Fatal("expected claim token for pending ghost user")
	}

	claims, err := f.issuer.Verify(view.ClaimToken, auth.KindClaim)
	if err != nil {
		t.Fatalf("claim token did not verify: %v", err)
	}
	if claims.Email != "imports@tokyofish.jp" {
		t.Errorf("claim token for wrong user: %s", claims.Email)
	}
	if view.Confirmation.Total != "8500.00" {
		t.Errorf("expected total 8500.00, got %s", view.Confirmation.Total)
	}
}

func TestView_BadToken(t *testing.T) {
	f := setupTestService(t)
	shipment, _ := f.sendShipment(t)

	if _, err := f.svc.View(shipment.ID, "no-such-token"); err != ErrLinkInvalid {
		t.Errorf("expected ErrLinkInvalid, got %v", err)
	}
}

func TestSubmit_ClaimRequiredBlocksDecision(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)

	_, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action:        "approve",
		SignatureName: "Kenji Sato",
		IPAddress:     "203.0.113.9",
	})
	if err != ErrClaimRequired {
		t.Fatalf("expected ErrClaimRequired, got %v", err)
	}

	// The failed attempt must not consume the link, log anything or move
	// the shipment.
	got, err := f.shipRepo.GetByID(shipment.ID)
	if err != nil {
		t.Fatalf("get shipment failed: %v", err)
	}
	if got.Status != models.StatusSCSent {
		t.Errorf("expected SC_SENT, got %s", got.Status)
	}
	history, err := f.svc.History(shipment.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty audit trail, got %d entries", len(history))
	}
	link, err := f.links.GetByShipmentToken(shipment.ID, token)
	if err != nil {
		t.Fatalf("link lookup failed: %v", err)
	}
	if !link.IsValid() {
		t.Error("expected link to remain valid after blocked attempt")
	}
}

func TestSubmit_Approve(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)
	f.claimBuyer(t)

	outcome, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action:        "approve",
		SignatureName: "Kenji Sato",
		IPAddress:     "203.0.113.9",
		UserAgent:     "Mozilla/5.0",
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if outcome.Status != models.StatusSigned {
		t.Errorf("expected SIGNED, got %s", outcome.Status)
	}
	// The ghost user is still pending, so a follow-up claim token rides
	// along with the approval.
	if outcome.ClaimToken == "" {
		t.Error("expected follow-up claim token while ghost user is pending")
	}

	history, err := f.svc.History(shipment.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(history))
	}
	entry := history[0]
	if entry.Status != models.SignatureApproved || entry.SignatureName != "Kenji Sato" {
		t.Errorf("unexpected audit entry %+v", entry)
	}
	if entry.IPAddress != "203.0.113.9" || entry.UserAgent != "Mozilla/5.0" {
		t.Errorf("expected IP and user agent recorded, got %+v", entry)
	}

	// The link is consumed; a second decision sees an invalid link.
	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action: "reject", Comment: "changed my mind",
	}); err != ErrLinkInvalid {
		t.Errorf("expected ErrLinkInvalid on replay, got %v", err)
	}
}

func TestSubmit_RejectRevertsToDraft(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)
	f.claimBuyer(t)

	outcome, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action:    "reject",
		Comment:   "price per kg is wrong",
		IPAddress: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if outcome.Status != models.StatusDraft {
		t.Errorf("expected DRAFT, got %s", outcome.Status)
	}

	history, err := f.svc.History(shipment.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].Status != models.SignatureRejected {
		t.Fatalf("expected one REJECTED entry, got %+v", history)
	}
	if history[0].RejectionComment != "price per kg is wrong" {
		t.Errorf("expected comment preserved, got %q", history[0].RejectionComment)
	}

	// The owner can edit again and resend with a fresh link.
	if _, err := f.shipSvc.SendForSignature(shipment.ID, f.seller.ID); err != nil {
		t.Errorf("resend after rejection failed: %v", err)
	}
	// The rejected link stays dead.
	if _, err := f.svc.View(shipment.ID, token); err != ErrLinkInvalid {
		t.Errorf("expected consumed link to stay invalid, got %v", err)
	}
}

func TestSubmit_ValidationOrder(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)
	f.claimBuyer(t)

	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{Action: "approve"}); err != ErrNameRequired {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{Action: "reject"}); err != ErrCommentRequired {
		t.Errorf("expected ErrCommentRequired, got %v", err)
	}
	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{Action: "sign"}); err != ErrUnknownAction {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}

	// Validation failures consume nothing; a proper approval still works.
	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action: "approve", SignatureName: "Kenji Sato",
	}); err != nil {
		t.Errorf("approve after validation failures failed: %v", err)
	}
}

func TestSubmit_AlreadyProcessed(t *testing.T) {
	f := setupTestService(t)
	shipment, token := f.sendShipment(t)
	f.claimBuyer(t)

	if err := f.shipRepo.UpdateStatus(shipment.ID, models.StatusSigned); err != nil {
		t.Fatalf("force status failed: %v", err)
	}
	if _, err := f.svc.Submit(shipment.ID, token, SubmitInput{
		Action: "approve", SignatureName: "Kenji Sato",
	}); err != ErrAlreadyProcessed {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}
