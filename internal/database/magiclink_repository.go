package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exportdesk/models"
)

// MagicLinkRepository persists magic links. The invariant it protects: at
// most one active link per shipment at any time.
type MagicLinkRepository struct {
	conn *sql.DB
}

// NewMagicLinkRepository creates a magic-link repository.
func NewMagicLinkRepository(conn *sql.DB) *MagicLinkRepository {
	return &MagicLinkRepository{conn: conn}
}

const linkColumns = `id, shipment_id, token, email_sent_to, created_at, expires_at, consumed_at, is_active`

func scanLink(row interface{ Scan(...any) error }) (*models.MagicLink, error) {
	var l models.MagicLink
	var consumed sql.NullTime
	err := row.Scan(&l.ID, &l.ShipmentID, &l.Token, &l.EmailSentTo,
		&l.CreatedAt, &l.ExpiresAt, &consumed, &l.IsActive)
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		l.ConsumedAt = &consumed.Time
	}
	return &l, nil
}

// IssueExclusive deactivates every active link for the shipment and inserts
// the new one inside a single transaction, so there is no window with two
// simultaneously active links.
func (r *MagicLinkRepository) IssueExclusive(shipmentID, token, email string, expiresAt time.Time) (*models.MagicLink, error) {
	tx, err := r.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin issue link: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE magic_links SET is_active = 0
		WHERE shipment_id = ? AND is_active = 1`, shipmentID); err != nil {
		return nil, fmt.Errorf("deactivate prior links: %w", err)
	}

	link := &models.MagicLink{
		ID:          uuid.NewString(),
		ShipmentID:  shipmentID,
		Token:       token,
		EmailSentTo: email,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
		IsActive:    true,
	}

	_, err = tx.Exec(`INSERT INTO magic_links
		(id, shipment_id, token, email_sent_to, created_at, expires_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		link.ID, link.ShipmentID, link.Token, link.EmailSentTo, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issue link: %w", err)
	}
	return link, nil
}

// GetByShipmentToken returns the link matching both the shipment and the
// bearer token, or ErrNotFound.
func (r *MagicLinkRepository) GetByShipmentToken(shipmentID, token string) (*models.MagicLink, error) {
	row := r.conn.QueryRow(`SELECT `+linkColumns+` FROM magic_links
		WHERE shipment_id = ? AND token = ?`, shipmentID, token)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link: %w", err)
	}
	return link, nil
}

// ActiveForShipment returns the currently active link for a shipment, or
// ErrNotFound.
func (r *MagicLinkRepository) ActiveForShipment(shipmentID string) (*models.MagicLink, error) {
	row := r.conn.QueryRow(`SELECT `+linkColumns+` FROM magic_links
		WHERE shipment_id = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1`, shipmentID)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active magic link: %w", err)
	}
	return link, nil
}
