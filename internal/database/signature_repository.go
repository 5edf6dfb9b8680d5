package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exportdesk/models"
)

// SignatureRepository records signature decisions. A decision consumes the
// magic link, appends the audit row and transitions the shipment in one
// transaction.
type SignatureRepository struct {
	conn *sql.DB
}

// NewSignatureRepository creates a signature repository.
func NewSignatureRepository(conn *sql.DB) *SignatureRepository {
	return &SignatureRepository{conn: conn}
}

// RecordDecision atomically consumes the magic link, appends the signature
// log and moves the shipment to newStatus. The consumption is a conditional
// update: among concurrent submissions for the same link exactly one sees
// the row flip, and every loser gets ErrLinkConsumed with nothing written.
func (r *SignatureRepository) RecordDecision(log *models.SignatureLog, newStatus models.ShipmentStatus) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.SignedAt.IsZero() {
		log.SignedAt = time.Now().UTC()
	}

	tx, err := r.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin record decision: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE magic_links SET consumed_at = ?, is_active = 0
		WHERE id = ? AND is_active = 1 AND consumed_at IS NULL`, log.SignedAt, log.MagicLinkID)
	if err != nil {
		return fmt.Errorf("consume magic link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLinkConsumed
	}

	_, err = tx.Exec(`INSERT INTO signature_logs
		(id, shipment_id, magic_link_id, status, signature_name, rejection_comment, ip_address, user_agent, signed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.ShipmentID, log.MagicLinkID, log.Status, log.SignatureName,
		log.RejectionComment, log.IPAddress, log.UserAgent, log.SignedAt)
	if err != nil {
		return fmt.Errorf("insert signature log: %w", err)
	}

	_, err = tx.Exec(`UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
		newStatus, log.SignedAt, log.ShipmentID)
	if err != nil {
		return fmt.Errorf("transition shipment: %w", err)
	}

	return tx.Commit()
}

const signatureColumns = `id, shipment_id, magic_link_id, status, signature_name,
	rejection_comment, ip_address, user_agent, signed_at`

func scanSignature(row interface{ Scan(...any) error }) (*models.SignatureLog, error) {
	var l models.SignatureLog
	err := row.Scan(&l.ID, &l.ShipmentID, &l.MagicLinkID, &l.Status, &l.SignatureName,
		&l.RejectionComment, &l.IPAddress, &l.UserAgent, &l.SignedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListForShipment returns the shipment's audit trail, newest first.
func (r *SignatureRepository) ListForShipment(shipmentID string) ([]models.SignatureLog, error) {
	rows, err := r.conn.Query(`SELECT `+signatureColumns+` FROM signature_logs
		WHERE shipment_id = ? ORDER BY signed_at DESC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var logs []models.SignatureLog
	for rows.Next() {
		l, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// LatestRejection returns the most recent REJECTED entry for a shipment, or
// ErrNotFound.
func (r *SignatureRepository) LatestRejection(shipmentID string) (*models.SignatureLog, error) {
	row := r.conn.QueryRow(`SELECT `+signatureColumns+` FROM signature_logs
		WHERE shipment_id = ? AND status = ? ORDER BY signed_at DESC LIMIT 1`,
		shipmentID, models.SignatureRejected)
	l, err := scanSignature(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest rejection: %w", err)
	}
	return l, nil
}
