package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exportdesk/models"
)

// OrganizationRepository persists organizations.
type OrganizationRepository struct {
	conn *sql.DB
}

// NewOrganizationRepository creates an organization repository.
func NewOrganizationRepository(conn *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{conn: conn}
}

const orgColumns = `id, name, tax_id, country, org_type, status, default_address,
	contact_email, ref_prefix, COALESCE(created_by_org_id, ''), created_at`

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.Name, &org.TaxID, &org.Country, &org.Type,
		&org.Status, &org.DefaultAddress, &org.ContactEmail, &org.RefPrefix,
		&org.CreatedByOrgID, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Create inserts a new organization, assigning an ID if absent.
func (r *OrganizationRepository) Create(org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.RefPrefix == "" {
		org.RefPrefix = models.DefaultRefPrefix
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}

	var createdBy any
	if org.CreatedByOrgID != "" {
		createdBy = org.CreatedByOrgID
	}

	_, err := r.conn.Exec(`INSERT INTO organizations
		(id, name, tax_id, country, org_type, status, default_address, contact_email, ref_prefix, created_by_org_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.TaxID, org.Country, org.Type, org.Status,
		org.DefaultAddress, org.ContactEmail, org.RefPrefix, createdBy, org.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetByID returns the organization with the given ID.
func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	row := r.conn.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// FindByTaxID returns the organization with the given tax ID, or ErrNotFound.
func (r *OrganizationRepository) FindByTaxID(taxID string) (*models.Organization, error) {
	row := r.conn.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE tax_id = ? AND tax_id != ''`, taxID)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find organization by tax id: %w", err)
	}
	return org, nil
}

// FindByName returns the organization with the given exact name, or ErrNotFound.
func (r *OrganizationRepository) FindByName(name string) (*models.Organization, error) {
	row := r.conn.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE name = ? COLLATE NOCASE`, name)
	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find organization by name: %w", err)
	}
	return org, nil
}

// List returns all organizations, newest first.
func (r *OrganizationRepository) List() ([]models.Organization, error) {
	rows, err := r.conn.Query(`SELECT ` + orgColumns + ` FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}

// Update persists mutable organization fields.
func (r *OrganizationRepository) Update(org *models.Organization) error {
	res, err := r.conn.Exec(`UPDATE organizations SET
		name = ?, tax_id = ?, country = ?, org_type = ?, status = ?,
		default_address = ?, contact_email = ?, ref_prefix = ?
		WHERE id = ?`,
		org.Name, org.TaxID, org.Country, org.Type, org.Status,
		org.DefaultAddress, org.ContactEmail, org.RefPrefix, org.ID)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActivateIfUnclaimed flips an UNCLAIMED organization to ACTIVE. The flip is
// idempotent: an already-ACTIVE organization is left untouched and no error
// is returned.
func (r *OrganizationRepository) ActivateIfUnclaimed(id string) error {
	_, err := r.conn.Exec(`UPDATE organizations SET status = ? WHERE id = ? AND status = ?`,
		models.OrgStatusActive, id, models.OrgStatusUnclaimed)
	if err != nil {
		return fmt.Errorf("activate organization: %w", err)
	}
	return nil
}

// Delete removes an organization and, via cascade, its users, relations and
// owned shipments.
func (r *OrganizationRepository) Delete(id string) error {
	res, err := r.conn.Exec(`DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OrgStats is a platform-level breakdown of organization counts.
type OrgStats struct {
	Total              int `json:"totalOrganizations"`
	Exporters          int `json:"exporters"`
	ExportersActive    int `json:"exportersActive"`
	Importers          int `json:"importers"`
	ImportersUnclaimed int `json:"importersUnclaimed"`
}

// Stats computes organization counts for the platform dashboard.
func (r *OrganizationRepository) Stats() (OrgStats, error) {
	var s OrgStats
	err := r.conn.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(org_type = 'EXPORTER'), 0),
		COALESCE(SUM(org_type = 'EXPORTER' AND status = 'ACTIVE'), 0),
		COALESCE(SUM(org_type = 'IMPORTER'), 0),
		COALESCE(SUM(org_type = 'IMPORTER' AND status = 'UNCLAIMED'), 0)
		FROM organizations`).Scan(&s.Total, &s.Exporters, &s.ExportersActive, &s.Importers, &s.ImportersUnclaimed)
	if err != nil {
		return OrgStats{}, fmt.Errorf("organization stats: %w", err)
	}
	return s, nil
}

// RecentSince returns organizations created at or after the cutoff, newest
// first, capped at limit.
func (r *OrganizationRepository) RecentSince(cutoff time.Time, limit int) ([]models.Organization, error) {
	rows, err := r.conn.Query(`SELECT `+orgColumns+` FROM organizations
		WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("recent organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}
