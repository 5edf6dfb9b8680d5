package database

import (
	"path/filepath"
	"testing"

	"exportdesk/models"
)

// setupTestDB creates a migrated on-disk test database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// mustCreateOrg inserts an organization for tests.
func mustCreateOrg(t *testing.T, db *DB, name string, status models.OrgStatus) *models.Organization {
	t.Helper()
	org := &models.Organization{
		Name:    name,
		Country: "Chile",
		Type:    models.OrgTypeExporter,
		Status:  status,
	}
	if err := NewOrganizationRepository(db.Connection()).Create(org); err != nil {
		t.Fatalf("failed to create organization: %v", err)
	}
	return org
}

// mustCreateUser inserts a user for tests.
func mustCreateUser(t *testing.T, db *DB, email, orgID string) *models.User {
	t.Helper()
	user := &models.User{
		Email:          email,
		OrganizationID: orgID,
		Role:           models.RoleAdmin,
		IsActive:       true,
	}
	if err := NewUserRepository(db.Connection()).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestMigrationsApply(t *testing.T) {
	db := setupTestDB(t)

	// The schema must be queryable after NewDB.
	var n int
	if err := db.Connection().QueryRow(`SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		t.Fatalf("organizations table not usable: %v", err)
	}
}

func TestOrganizationCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db.Connection())

	org := mustCreateOrg(t, db, "Salmones del Sur S.A.", models.OrgStatusActive)
	if org.ID == "" {
		t.Fatal("expected an assigned ID")
	}

	got, err := repo.GetByID(org.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Salmones del Sur S.A." {
		t.Errorf("name = %q", got.Name)
	}
	if got.ShipmentRefPrefix() != models.DefaultRefPrefix {
		t.Errorf("ref prefix = %q", got.ShipmentRefPrefix())
	}
}

func TestOrganizationActivateIfUnclaimed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db.Connection())

	org := mustCreateOrg(t, db, "Importer GmbH", models.OrgStatusUnclaimed)

	if err := repo.ActivateIfUnclaimed(org.ID); err != nil {
		t.Fatalf("ActivateIfUnclaimed failed: %v", err)
	}
	got, _ := repo.GetByID(org.ID)
	if got.Status != models.OrgStatusActive {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}

	// Second flip is a no-op.
	if err := repo.ActivateIfUnclaimed(org.ID); err != nil {
		t.Fatalf("second ActivateIfUnclaimed failed: %v", err)
	}
	got, _ = repo.GetByID(org.ID)
	if got.Status != models.OrgStatusActive {
		t.Errorf("status after replay = %s, want ACTIVE", got.Status)
	}
}

func TestUserEmailUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db.Connection())

	org := mustCreateOrg(t, db, "Org", models.OrgStatusActive)
	mustCreateUser(t, db, "dup@example.com", org.ID)

	err := repo.Create(&models.User{Email: "DUP@example.com", OrganizationID: org.ID, IsActive: true})
	if err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate for case-insensitive email, got %v", err)
	}
}

func TestUserCompleteClaimOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db.Connection())

	org := mustCreateOrg(t, db, "Org", models.OrgStatusUnclaimed)
	ghost := &models.User{
		Email:          "ghost@example.com",
		OrganizationID: org.ID,
		InvitePending:  true,
		IsActive:       true,
	}
	if err := repo.Create(ghost); err != nil {
		t.Fatalf("create ghost: %v", err)
	}

	if err := repo.CompleteClaim(ghost.ID, "hash1", "Jane"); err != nil {
		t.Fatalf("CompleteClaim failed: %v", err)
	}

	got, _ := repo.GetByID(ghost.ID)
	if got.InvitePending {
		t.Error("expected invite_pending cleared")
	}
	if got.Name != "Jane" {
		t.Errorf("name = %q", got.Name)
	}

	// Replaying the claim must fail: the user is no longer pending.
	if err := repo.CompleteClaim(ghost.ID, "hash2", ""); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestRelationUniquePerPair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRelationRepository(db.Connection())

	host := mustCreateOrg(t, db, "Host", models.OrgStatusActive)
	partner := mustCreateOrg(t, db, "Partner", models.OrgStatusActive)

	rel := &models.BusinessRelation{HostOrgID: host.ID, PartnerOrgID: partner.ID}
	if err := repo.Create(rel); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &models.BusinessRelation{HostOrgID: host.ID, PartnerOrgID: partner.ID}
	if err := repo.Create(dup); err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	ok, err := repo.Exists(host.ID, partner.ID)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}
