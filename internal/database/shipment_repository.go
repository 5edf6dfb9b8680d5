package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"exportdesk/models"
)

// ShipmentRepository persists shipments with their participants and items.
type ShipmentRepository struct {
	conn *sql.DB
}

// NewShipmentRepository creates a shipment repository.
func NewShipmentRepository(conn *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{conn: conn}
}

const shipmentColumns = `id, owner_org_id, internal_ref, status, incoterm,
	destination_port, payment_terms, currency, buyer_email, booking_ref,
	vessel_name, etd, eta, created_by, created_at, updated_at`

func scanShipment(row interface{ Scan(...any) error }) (*models.Shipment, error) {
	var s models.Shipment
	var etd, eta sql.NullTime
	err := row.Scan(&s.ID, &s.OwnerOrgID, &s.InternalRef, &s.Status, &s.Incoterm,
		&s.DestinationPort, &s.PaymentTerms, &s.Currency, &s.BuyerEmail,
		&s.BookingRef, &s.VesselName, &etd, &eta, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if etd.Valid {
		s.ETD = &etd.Time
	}
	if eta.Valid {
		s.ETA = &eta.Time
	}
	return &s, nil
}

// Create inserts a shipment together with its SELLER/BUYER participants and
// line items in one transaction, allocating the next internal reference for
// the owning organization from a monotonic per-owner counter. Two concurrent
// creations for the same owner can never receive the same reference: the
// counter bump and the insert share a transaction, a UNIQUE(owner, ref)
// constraint backstops it, and lock contention is retried.
func (r *ShipmentRepository) Create(shipment *models.Shipment, refPrefix, buyerOrgID string, items []models.SalesItem) error {
	if shipment.ID == "" {
		shipment.ID = uuid.NewString()
	}
	if shipment.Status == "" {
		shipment.Status = models.StatusDraft
	}
	if shipment.Currency == "" {
		shipment.Currency = "USD"
	}
	now := time.Now().UTC()
	shipment.CreatedAt = now
	shipment.UpdatedAt = now

	return retry.Do(
		func() error { return r.createOnce(shipment, refPrefix, buyerOrgID, items) },
		retry.Attempts(5),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return isBusyErr(err) || isConstraintErr(err) }),
	)
}

func (r *ShipmentRepository) createOnce(shipment *models.Shipment, refPrefix, buyerOrgID string, items []models.SalesItem) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin create shipment: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow(`INSERT INTO shipment_ref_counters (owner_org_id, next_seq) VALUES (?, 2)
		ON CONFLICT (owner_org_id) DO UPDATE SET next_seq = next_seq + 1
		RETURNING next_seq - 1`, shipment.OwnerOrgID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("allocate shipment reference: %w", err)
	}
	shipment.InternalRef = fmt.Sprintf("%s-%04d", refPrefix, seq)

	var etd, eta any
	if shipment.ETD != nil {
		etd = *shipment.ETD
	}
	if shipment.ETA != nil {
		eta = *shipment.ETA
	}

	_, err = tx.Exec(`INSERT INTO shipments
		(id, owner_org_id, internal_ref, status, incoterm, destination_port, payment_terms,
		 currency, buyer_email, booking_ref, vessel_name, etd, eta, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shipment.ID, shipment.OwnerOrgID, shipment.InternalRef, shipment.Status,
		shipment.Incoterm, shipment.DestinationPort, shipment.PaymentTerms,
		shipment.Currency, shipment.BuyerEmail, shipment.BookingRef,
		shipment.VesselName, etd, eta, shipment.CreatedBy, shipment.CreatedAt, shipment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}

	participants := []struct {
		orgID string
		role  models.ParticipantRole
	}{
		{shipment.OwnerOrgID, models.RoleSeller},
		{buyerOrgID, models.RoleBuyer},
	}
	for _, p := range participants {
		_, err = tx.Exec(`INSERT INTO shipment_participants (id, shipment_id, organization_id, role_type)
			VALUES (?, ?, ?, ?)`, uuid.NewString(), shipment.ID, p.orgID, p.role)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].ShipmentID = shipment.ID
		_, err = tx.Exec(`INSERT INTO sales_items (id, shipment_id, sku, description, price_cents, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			items[i].ID, shipment.ID, items[i].SKU, items[i].Description,
			items[i].PriceCents, items[i].Quantity)
		if err != nil {
			return fmt.Errorf("insert sales item: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID returns the shipment with the given ID.
func (r *ShipmentRepository) GetByID(id string) (*models.Shipment, error) {
	row := r.conn.QueryRow(`SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id)
	s, err := scanShipment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	return s, nil
}

// ListForOrg returns shipments the organization owns or participates in,
// newest first.
func (r *ShipmentRepository) ListForOrg(orgID string) ([]models.Shipment, error) {
	rows, err := r.conn.Query(`SELECT DISTINCT s.id, s.owner_org_id, s.internal_ref, s.status,
		s.incoterm, s.destination_port, s.payment_terms, s.currency, s.buyer_email,
		s.booking_ref, s.vessel_name, s.etd, s.eta, s.created_by, s.created_at, s.updated_at
		FROM shipments s
		LEFT JOIN shipment_participants sp ON sp.shipment_id = s.id
		WHERE s.owner_org_id = ? OR sp.organization_id = ?
		ORDER BY s.created_at DESC`, orgID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}

// ListAll returns every shipment, newest first. Platform admin only.
func (r *ShipmentRepository) ListAll() ([]models.Shipment, error) {
	rows, err := r.conn.Query(`SELECT ` + shipmentColumns + ` FROM shipments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all shipments: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}

func collectShipments(rows *sql.Rows) ([]models.Shipment, error) {
	var shipments []models.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		shipments = append(shipments, *s)
	}
	return shipments, rows.Err()
}

// UpdateStatus transitions the shipment's lifecycle status.
func (r *ShipmentRepository) UpdateStatus(id string, status models.ShipmentStatus) error {
	res, err := r.conn.Exec(`UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLogistics persists the post-signature execution fields.
func (r *ShipmentRepository) UpdateLogistics(s *models.Shipment) error {
	var etd, eta any
	if s.ETD != nil {
		etd = *s.ETD
	}
	if s.ETA != nil {
		eta = *s.ETA
	}
	res, err := r.conn.Exec(`UPDATE shipments
		SET booking_ref = ?, vessel_name = ?, etd = ?, eta = ?, updated_at = ?
		WHERE id = ?`,
		s.BookingRef, s.VesselName, etd, eta, time.Now().UTC(), s.ID)
	if err != nil {
		return fmt.Errorf("update shipment logistics: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Participants returns the shipment's role assignments.
func (r *ShipmentRepository) Participants(shipmentID string) ([]models.ShipmentParticipant, error) {
	rows, err := r.conn.Query(`SELECT id, shipment_id, organization_id, role_type
		FROM shipment_participants WHERE shipment_id = ?`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []models.ShipmentParticipant
	for rows.Next() {
		var p models.ShipmentParticipant
		if err := rows.Scan(&p.ID, &p.ShipmentID, &p.OrganizationID, &p.Role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ParticipantByRole returns the participant holding the given role, or
// ErrNotFound.
func (r *ShipmentRepository) ParticipantByRole(shipmentID string, role models.ParticipantRole) (*models.ShipmentParticipant, error) {
	var p models.ShipmentParticipant
	err := r.conn.QueryRow(`SELECT id, shipment_id, organization_id, role_type
		FROM shipment_participants WHERE shipment_id = ? AND role_type = ?`,
		shipmentID, role).Scan(&p.ID, &p.ShipmentID, &p.OrganizationID, &p.Role)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("participant by role: %w", err)
	}
	return &p, nil
}

// Items returns the shipment's line items in insertion order.
func (r *ShipmentRepository) Items(shipmentID string) ([]models.SalesItem, error) {
	rows, err := r.conn.Query(`SELECT id, shipment_id, sku, description, price_cents, quantity
		FROM sales_items WHERE shipment_id = ? ORDER BY rowid`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []models.SalesItem
	for rows.Next() {
		var it models.SalesItem
		if err := rows.Scan(&it.ID, &it.ShipmentID, &it.SKU, &it.Description, &it.PriceCents, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns one line item scoped to a shipment.
func (r *ShipmentRepository) GetItem(shipmentID, itemID string) (*models.SalesItem, error) {
	var it models.SalesItem
	err := r.conn.QueryRow(`SELECT id, shipment_id, sku, description, price_cents, quantity
		FROM sales_items WHERE id = ? AND shipment_id = ?`, itemID, shipmentID).
		Scan(&it.ID, &it.ShipmentID, &it.SKU, &it.Description, &it.PriceCents, &it.Quantity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// AddItem appends a line item to a shipment.
func (r *ShipmentRepository) AddItem(item *models.SalesItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := r.conn.Exec(`INSERT INTO sales_items (id, shipment_id, sku, description, price_cents, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.ShipmentID, item.SKU, item.Description, item.PriceCents, item.Quantity)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	return nil
}

// UpdateItem persists edits to a line item.
func (r *ShipmentRepository) UpdateItem(item *models.SalesItem) error {
	res, err := r.conn.Exec(`UPDATE sales_items SET sku = ?, description = ?, price_cents = ?, quantity = ?
		WHERE id = ? AND shipment_id = ?`,
		item.SKU, item.Description, item.PriceCents, item.Quantity, item.ID, item.ShipmentID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a line item.
func (r *ShipmentRepository) DeleteItem(shipmentID, itemID string) error {
	res, err := r.conn.Exec(`DELETE FROM sales_items WHERE id = ? AND shipment_id = ?`, itemID, shipmentID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountsByStatus returns shipment counts keyed by lifecycle status.
func (r *ShipmentRepository) CountsByStatus() (map[models.ShipmentStatus]int, error) {
	rows, err := r.conn.Query(`SELECT status, COUNT(*) FROM shipments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("shipment counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ShipmentStatus]int)
	for rows.Next() {
		var status models.ShipmentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountSince returns the number of shipments created at or after the cutoff.
func (r *ShipmentRepository) CountSince(cutoff time.Time) (int, error) {
	var n int
	if err := r.conn.QueryRow(`SELECT COUNT(*) FROM shipments WHERE created_at >= ?`, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shipments: %w", err)
	}
	return n, nil
}

// Recent returns the most recently created shipments, capped at limit.
func (r *ShipmentRepository) Recent(limit int) ([]models.Shipment, error) {
	rows, err := r.conn.Query(`SELECT `+shipmentColumns+` FROM shipments
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent shipments: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}
