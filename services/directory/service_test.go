package directory

import (
	"path/filepath"
	"testing"

	"exportdesk/internal/database"
	"exportdesk/models"
)

type fixture struct {
	svc   *Service
	orgs  *database.OrganizationRepository
	users *database.UserRepository
	host  *models.Organization
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

	host := &models.Organization{
		Name:    "Austral Seafoods SpA",
		Country: "CL",
		Type:    models.OrgTypeExporter,
		Status:  models.OrgStatusActive,
	}
	if err := orgs.Create(host); err != nil {
		t.Fatalf("failed to create host org: %v", err)
	}

	svc := NewService(orgs, users, relations, shipRepo, nil)
	return &fixture{svc: svc, orgs: orgs, users: users, host: host}
}

func TestAddPartner_CreatesShadowOrg(t *testing.T) {
	f := setupTestService(t)

	res, err := f.svc.AddPartner(f.host.ID, PartnerInput{
		Name:         "Tokyo Fish Trading KK",
		Country:      "JP",
		TaxID:        "JP-555",
		ContactEmail: "imports@tokyofish.jp",
	})
	if err != nil {
		t.Fatalf("add partner failed: %v", err)
	}
	if res.WasExisting {
		t.Error("expected a fresh shadow org")
	}
	org := res.Organization
	if org.Status != models.OrgStatusUnclaimed {
		t.Errorf("expected UNCLAIMED, got %s", org.Status)
	}
	if org.Type != models.OrgTypeImporter {
		t.Errorf("expected IMPORTER, got %s", org.Type)
	}
	if org.CreatedByOrgID != f.host.ID {
		t.Errorf("expected created_by %s, got %s", f.host.ID, org.CreatedByOrgID)
	}

	// No ghost user yet; that waits for the first signature request.
	if _, err := f.users.GetByEmail("imports@tokyofish.jp"); err != database.ErrNotFound {
		t.Errorf("expected no ghost user after AddPartner, got %v", err)
	}

	partners, err := f.svc.Partners(f.host.ID)
	if err != nil {
		t.Fatalf("list partners failed: %v", err)
	}
	if len(partners) != 1 || partners[0].Organization.ID != org.ID {
		t.Errorf("unexpected partner list %+v", partners)
	}
}

func TestAddPartner_LinksExistingByTaxID(t *testing.T) {
	f := setupTestService(t)

	existing := &models.Organization{
		Name:    "Tokyo Fish Trading KK",
		TaxID:   "JP-555",
		Country: "JP",
		Type:    models.OrgTypeImporter,
		Status:  models.OrgStatusActive,
	}
	if err := f.orgs.Create(existing); err != nil {
		t.Fatalf("failed to create existing org: %v", err)
	}

	res, err := f.svc.AddPartner(f.host.ID, PartnerInput{
		Name:    "Tokyo Fish (JP)", // different display name, same tax id
		Country: "JP",
		TaxID:   "JP-555",
		Alias:   "Tokyo",
	})
	if err != nil {
		t.Fatalf("add partner failed: %v", err)
	}
	if !res.WasExisting {
		t.Error("expected existing org to be linked, not duplicated")
	}
	if res.Organization.ID != existing.ID {
		t.Errorf("expected link to %s, got %s", existing.ID, res.Organization.ID)
	}
	if res.Organization.Status != models.OrgStatusActive {
		t.Errorf("linking must not change status, got %s", res.Organization.Status)
	}

	p, err := f.svc.Partner(f.host.ID, existing.ID)
	if err != nil {
		t.Fatalf("partner detail failed: %v", err)
	}
	if p.Relation.Alias != "Tokyo" {
		t.Errorf("expected alias Tokyo, got %q", p.Relation.Alias)
	}
}

func TestAddPartner_Idempotent(t *testing.T) {
	f := setupTestService(t)

	input := PartnerInput{Name: "Hamburg Trading GmbH", Country: "DE"}
	first, err := f.svc.AddPartner(f.host.ID, input)
	if err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	second, err := f.svc.AddPartner(f.host.ID, input)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if first.Organization.ID != second.Organization.ID {
		t.Error("expected the same org on repeated adds")
	}

	partners, err := f.svc.Partners(f.host.ID)
	if err != nil {
		t.Fatalf("list partners failed: %v", err)
	}
	if len(partners) != 1 {
		t.Errorf("expected one relation, got %d", len(partners))
	}
}

func TestAddPartner_Validation(t *testing.T) {
	f := setupTestService(t)

	if _, err := f.svc.AddPartner(f.host.ID, PartnerInput{Country: "DE"}); err != ErrNameRequired {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if _, err := f.svc.AddPartner(f.host.ID, PartnerInput{Name: "X"}); err != ErrCountryRequired {
		t.Errorf("expected ErrCountryRequired, got %v", err)
	}
	if _, err := f.svc.AddPartner("", PartnerInput{Name: "X", Country: "DE"}); err != ErrNoOrganization {
		t.Errorf("expected ErrNoOrganization, got %v", err)
	}
}

func TestPartner_ScopedToHost(t *testing.T) {
	f := setupTestService(t)

	other := &models.Organization{
		Name:    "Pacifico Exports SA",
		Country: "PE",
		Type:    models.OrgTypeExporter,
		Status:  models.OrgStatusActive,
	}
	if err := f.orgs.Create(other); err != nil {
		t.Fatalf("failed to create other org: %v", err)
	}
	res, err := f.svc.AddPartner(f.host.ID, PartnerInput{Name: "Tokyo Fish", Country: "JP"})
	if err != nil {
		t.Fatalf("add partner failed: %v", err)
	}

	// The other exporter has not linked this partner.
	if _, err := f.svc.Partner(other.ID, res.Organization.ID); err != ErrPartnerNotFound {
		t.Errorf("expected ErrPartnerNotFound, got %v", err)
	}
}

func TestEnsureGhostUser_Idempotent(t *testing.T) {
	f := setupTestService(t)
	res, err := f.svc.AddPartner(f.host.ID, PartnerInput{Name: "Tokyo Fish", Country: "JP"})
	if err != nil {
		t.Fatalf("add partner failed: %v", err)
	}

	first, err := f.svc.EnsureGhostUser(res.Organization, "imports@tokyofish.jp")
	if err != nil {
		t.Fatalf("ensure ghost failed: %v", err)
	}
	if !first.InvitePending {
		t.Error("expected ghost user to be invite pending")
	}
	if first.OrganizationID != res.Organization.ID {
		t.Errorf("ghost bound to wrong org %s", first.OrganizationID)
	}

	second, err := f.svc.EnsureGhostUser(res.Organization, "imports@tokyofish.jp")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected the same ghost user on repeated calls")
	}
}
