package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exportdesk/models"
)

// RelationRepository persists business relations (the per-tenant address book).
type RelationRepository struct {
	conn *sql.DB
}

// NewRelationRepository creates a relation repository.
func NewRelationRepository(conn *sql.DB) *RelationRepository {
	return &RelationRepository{conn: conn}
}

// Create inserts a relation edge. Fails with ErrDuplicate when the
// (host, partner) pair already exists.
func (r *RelationRepository) Create(rel *models.BusinessRelation) error {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(`INSERT INTO business_relations
		(id, host_org_id, partner_org_id, alias, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.HostOrgID, rel.PartnerOrgID, rel.Alias, rel.Notes, rel.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

// Exists reports whether host has partner in its address book.
func (r *RelationRepository) Exists(hostOrgID, partnerOrgID string) (bool, error) {
	var n int
	err := r.conn.QueryRow(`SELECT COUNT(*) FROM business_relations
		WHERE host_org_id = ? AND partner_org_id = ?`, hostOrgID, partnerOrgID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("relation exists: %w", err)
	}
	return n > 0, nil
}

// Get returns the relation between host and partner, or ErrNotFound.
func (r *RelationRepository) Get(hostOrgID, partnerOrgID string) (*models.BusinessRelation, error) {
	var rel models.BusinessRelation
	err := r.conn.QueryRow(`SELECT id, host_org_id, partner_org_id, alias, notes, created_at
		FROM business_relations WHERE host_org_id = ? AND partner_org_id = ?`,
		hostOrgID, partnerOrgID).Scan(&rel.ID, &rel.HostOrgID, &rel.PartnerOrgID,
		&rel.Alias, &rel.Notes, &rel.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	return &rel, nil
}

// Partner is a relation joined with its partner organization, shaped for
// client lists.
type Partner struct {
	Relation     models.BusinessRelation `json:"relation"`
	Organization models.Organization     `json:"organization"`
}

// ListForHost returns all partners in the host's address book, newest first.
func (r *RelationRepository) ListForHost(hostOrgID string) ([]Partner, error) {
	rows, err := r.conn.Query(`SELECT
		br.id, br.host_org_id, br.partner_org_id, br.alias, br.notes, br.created_at,
		o.id, o.name, o.tax_id, o.country, o.org_type, o.status, o.default_address,
		o.contact_email, o.ref_prefix, COALESCE(o.created_by_org_id, ''), o.created_at
		FROM business_relations br
		JOIN organizations o ON o.id = br.partner_org_id
		WHERE br.host_org_id = ?
		ORDER BY br.created_at DESC`, hostOrgID)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		var p Partner
		err := rows.Scan(
			&p.Relation.ID, &p.Relation.HostOrgID, &p.Relation.PartnerOrgID,
			&p.Relation.Alias, &p.Relation.Notes, &p.Relation.CreatedAt,
			&p.Organization.ID, &p.Organization.Name, &p.Organization.TaxID,
			&p.Organization.Country, &p.Organization.Type, &p.Organization.Status,
			&p.Organization.DefaultAddress, &p.Organization.ContactEmail,
			&p.Organization.RefPrefix, &p.Organization.CreatedByOrgID, &p.Organization.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}
