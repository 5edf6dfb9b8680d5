// Package shipments implements the shipment lifecycle: creation with
// reference allocation, sales item editing, the sales confirmation snapshot
// and sending a shipment out for signature.
package shipments

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"exportdesk/internal/database"
	"exportdesk/models"
	"exportdesk/services/directory"
)

var (
	ErrNotFound        = errors.New("shipment not found")
	ErrForbidden       = errors.New("shipment does not belong to your organization")
	ErrInvalidState    = errors.New("shipment is not editable in its current status")
	ErrInvalidIncoterm = errors.New("unknown incoterm")
	ErrNotAPartner     = errors.New("buyer is not in your address book")
	ErrNoItems         = errors.New("shipment needs at least one sales item")
	ErrBadQuantity     = errors.New("item quantity must be positive")
	ErrBadPrice        = errors.New("item price cannot be negative")
	ErrMissingContact  = errors.New("no buyer email on shipment or partner record")
	ErrNoBuyer         = errors.New("shipment has no buyer participant")
	ErrItemNotFound    = errors.New("sales item not found")
)

// Notifier delivers sales confirmation requests. Implemented by the mailer;
// delivery is best effort and never blocks the caller.
type Notifier interface {
	QueueSalesConfirmation(to, sellerName, shipmentRef, shipmentID, token string)
	SigningURL(shipmentID, token string) string
}

// Service owns shipment lifecycle operations.
type Service struct {
	shipments *database.ShipmentRepository
	orgs      *database.OrganizationRepository
	relations *database.RelationRepository
	links     *database.MagicLinkRepository
	directory *directory.Service
	notifier  Notifier

	linkTTL time.Duration
	log     *slog.Logger
}

// NewService creates a shipments service.
func NewService(
	shipments *database.ShipmentRepository,
	orgs *database.OrganizationRepository,
	relations *database.RelationRepository,
	links *database.MagicLinkRepository,
	dir *directory.Service,
	notifier Notifier,
	linkTTL time.Duration,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		shipments: shipments,
		orgs:      orgs,
		relations: relations,
		links:     links,
		directory: dir,
		notifier:  notifier,
		linkTTL:   linkTTL,
		log:       log,
	}
}

// ItemInput is one sales line on a new or edited shipment.
type ItemInput struct {
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
}

// CreateInput describes a new shipment.
type CreateInput struct {
	BuyerOrgID      string      `json:"buyerOrgId"`
	BuyerEmail      string      `json:"buyerEmail"`
	Incoterm        string      `json:"incoterm"`
	DestinationPort string      `json:"destinationPort"`
	PaymentTerms    string      `json:"paymentTerms"`
	Currency        string      `json:"currency"`
	Items           []ItemInput `json:"items"`
}

func itemFromInput(in ItemInput) (models.SalesItem, error) {
	if in.Quantity <= 0 {
		return models.SalesItem{}, ErrBadQuantity
	}
	cents, err := models.ParseCents(in.Price)
	if err != nil {
		return models.SalesItem{}, fmt.Errorf("%w: %v", ErrBadPrice, err)
	}
	if cents < 0 {
		return models.SalesItem{}, ErrBadPrice
	}
	return models.SalesItem{
		SKU:         strings.TrimSpace(in.SKU),
		Description: strings.TrimSpace(in.Description),
		PriceCents:  cents,
		Quantity:    in.Quantity,
	}, nil
}

// Create validates a new shipment and persists it with a freshly allocated
// internal reference. The buyer must already be a partner in the owner's
// address book.
func (s *Service) Create(ownerOrgID, creatorID string, input CreateInput) (*models.Shipment, error) {
	if !models.IsValidIncoterm(input.Incoterm) {
		return nil, ErrInvalidIncoterm
	}
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}
	items := make([]models.SalesItem, len(input.Items))
	for i, in := range input.Items {
		item, err := itemFromInput(in)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}

	linked, err := s.relations.Exists(ownerOrgID, input.BuyerOrgID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, ErrNotAPartner
	}

	owner, err := s.orgs.GetByID(ownerOrgID)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	shipment := &models.Shipment{
		OwnerOrgID:      ownerOrgID,
		CreatedBy:       creatorID,
		Status:          models.StatusDraft,
		Incoterm:        input.Incoterm,
		DestinationPort: strings.TrimSpace(input.DestinationPort),
		PaymentTerms:    strings.TrimSpace(input.PaymentTerms),
		Currency:        currency,
		BuyerEmail:      strings.TrimSpace(input.BuyerEmail),
	}

	if err := s.shipments.Create(shipment, owner.ShipmentRefPrefix(), input.BuyerOrgID, items); err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	s.log.Info("shipment created",
		"shipment", shipment.ID, "ref", shipment.InternalRef, "owner", ownerOrgID)
	return shipment, nil
}

// List returns every shipment the organization owns or participates in.
func (s *Service) List(orgID string) ([]models.Shipment, error) {
	return s.shipments.ListForOrg(orgID)
}

// Get returns one shipment, visible only to its owner and participants.
func (s *Service) Get(shipmentID, orgID string) (*models.Shipment, error) {
	return s.loadVisible(shipmentID, orgID)
}

func (s *Service) loadVisible(shipmentID, orgID string) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByID(shipmentID)
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if shipment.OwnerOrgID == orgID {
		return shipment, nil
	}
	participants, err := s.shipments.Participants(shipmentID)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if p.OrganizationID == orgID {
			return shipment, nil
		}
	}
	return nil, ErrForbidden
}

func (s *Service) loadOwned(shipmentID, orgID string) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByID(shipmentID)
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if shipment.OwnerOrgID != orgID {
		return nil, ErrForbidden
	}
	return shipment, nil
}

// PartyView is one side of a sales confirmation.
type PartyView struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
}

// SalesConfirmation is the document snapshot shown to both sides and on the
// signing page.
type SalesConfirmation struct {
	Shipment   *models.Shipment   `json:"shipment"`
	Seller     PartyView          `json:"seller"`
	Buyer      PartyView          `json:"buyer"`
	Items      []models.SalesItem `json:"items"`
	TotalCents int64              `json:"-"`
	Total      string             `json:"total"`
	Currency   string             `json:"currency"`
}

// Confirmation assembles the sales confirmation for a shipment the caller
// can see. Totals are computed from the items, never stored.
func (s *Service) Confirmation(shipmentID, orgID string) (*SalesConfirmation, error) {
	shipment, err := s.loadVisible(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	return s.BuildConfirmation(shipment)
}

// BuildConfirmation assembles the snapshot without an access check. The
// signature workflow uses it after validating a magic link instead of a
// session.
func (s *Service) BuildConfirmation(shipment *models.Shipment) (*SalesConfirmation, error) {
	seller, err := s.participantOrg(shipment.ID, models.RoleSeller)
	if err != nil {
		return nil, err
	}
	buyer, err := s.participantOrg(shipment.ID, models.RoleBuyer)
	if err != nil {
		return nil, err
	}
	items, err := s.shipments.Items(shipment.ID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, item := range items {
		total += item.TotalCents()
	}
	return &SalesConfirmation{
		Shipment:   shipment,
		Seller:     partyView(seller),
		Buyer:      partyView(buyer),
		Items:      items,
		TotalCents: total,
		Total:      models.FormatCents(total),
		Currency:   shipment.Currency,
	}, nil
}

func partyView(org *models.Organization) PartyView {
	return PartyView{
		Name:    org.Name,
		Country: org.Country,
		Address: org.DefaultAddress,
		TaxID:   org.TaxID,
	}
}

// BuyerOrg returns the organization holding the BUYER role on a shipment.
func (s *Service) BuyerOrg(shipmentID string) (*models.Organization, error) {
	return s.participantOrg(shipmentID, models.RoleBuyer)
}

func (s *Service) participantOrg(shipmentID string, role models.ParticipantRole) (*models.Organization, error) {
	p, err := s.shipments.ParticipantByRole(shipmentID, role)
	if err == database.ErrNotFound {
		if role == models.RoleBuyer {
			return nil, ErrNoBuyer
		}
		return nil, fmt.Errorf("shipment has no %s participant", role)
	}
	if err != nil {
		return nil, err
	}
	return s.orgs.GetByID(p.OrganizationID)
}

// SendResult reports a completed SendForSignature: the updated shipment plus
// the minted magic link so the caller can relay it out of band.
type SendResult struct {
	Shipment     *models.Shipment
	MagicLinkURL string
	ExpiresAt    time.Time
}

// SendForSignature issues a fresh magic link for the buyer and emails it.
// Legal from DRAFT and SC_SENT only; resending deactivates any earlier link.
// The buyer's ghost user is provisioned here so the recipient can later
// claim the account.
func (s *Service) SendForSignature(shipmentID, orgID string) (*SendResult, error) {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	if !shipment.Signable() {
		return nil, ErrInvalidState
	}

	buyerOrg, err := s.participantOrg(shipment.ID, models.RoleBuyer)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(shipment.BuyerEmail)
	if email == "" {
		email = strings.TrimSpace(buyerOrg.ContactEmail)
	}
	if email == "" {
		return nil, ErrMissingContact
	}

	if _, err := s.directory.EnsureGhostUser(buyerOrg, email); err != nil {
		return nil, err
	}

	token, err := generateLinkToken()
	if err != nil {
		return nil, err
	}
	link, err := s.links.IssueExclusive(shipment.ID, token, email, time.Now().UTC().Add(s.linkTTL))
	if err != nil {
		return nil, fmt.Errorf("issue magic link: %w", err)
	}

	if shipment.Status != models.StatusSCSent {
		if err := s.shipments.UpdateStatus(shipment.ID, models.StatusSCSent); err != nil {
			return nil, err
		}
		shipment.Status = models.StatusSCSent
	}

	seller, err := s.orgs.GetByID(shipment.OwnerOrgID)
	if err != nil {
		return nil, err
	}
	s.notifier.QueueSalesConfirmation(email, seller.Name, shipment.InternalRef, shipment.ID, token)

	s.log.Info("shipment sent for signature",
		"shipment", shipment.ID, "ref", shipment.InternalRef, "recipient", email)
	return &SendResult{
		Shipment:     shipment,
		MagicLinkURL: s.notifier.SigningURL(shipment.ID, token),
		ExpiresAt:    link.ExpiresAt,
	}, nil
}

func generateLinkToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// AddItem appends a sales line. Only editable shipments accept item changes.
func (s *Service) AddItem(shipmentID, orgID string, input ItemInput) (*models.SalesItem, error) {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	if !shipment.Editable() {
		return nil, ErrInvalidState
	}
	item, err := itemFromInput(input)
	if err != nil {
		return nil, err
	}
	item.ShipmentID = shipment.ID
	if err := s.shipments.AddItem(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem replaces a sales line in place.
func (s *Service) UpdateItem(shipmentID, itemID, orgID string, input ItemInput) (*models.SalesItem, error) {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	if !shipment.Editable() {
		return nil, ErrInvalidState
	}
	updated, err := itemFromInput(input)
	if err != nil {
		return nil, err
	}
	item, err := s.shipments.GetItem(shipment.ID, itemID)
	if err == database.ErrNotFound {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	item.SKU = updated.SKU
	item.Description = updated.Description
	item.PriceCents = updated.PriceCents
	item.Quantity = updated.Quantity
	if err := s.shipments.UpdateItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a sales line.
func (s *Service) DeleteItem(shipmentID, itemID, orgID string) error {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return err
	}
	if !shipment.Editable() {
		return ErrInvalidState
	}
	if err := s.shipments.DeleteItem(shipment.ID, itemID); err != nil {
		if err == database.ErrNotFound {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// legalTransitions holds the forward edges of the shipment state machine.
// The SC_SENT to DRAFT reversal happens only through a signature rejection.
var legalTransitions = map[models.ShipmentStatus]models.ShipmentStatus{
	models.StatusSigned:        models.StatusLabelPending,
	models.StatusLabelPending:  models.StatusLabelApproved,
	models.StatusLabelApproved: models.StatusPacking,
	models.StatusPacking:       models.StatusShipped,
	models.StatusShipped:       models.StatusCompleted,
}

// LogisticsInput carries the post-signature execution fields.
type LogisticsInput struct {
	BookingRef *string    `json:"bookingRef"`
	VesselName *string    `json:"vesselName"`
	ETD        *time.Time `json:"etd"`
	ETA        *time.Time `json:"eta"`
}

// UpdateLogistics writes booking details onto a signed shipment.
func (s *Service) UpdateLogistics(shipmentID, orgID string, input LogisticsInput) (*models.Shipment, error) {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	if shipment.Editable() {
		return nil, ErrInvalidState
	}
	if input.BookingRef != nil {
		shipment.BookingRef = strings.TrimSpace(*input.BookingRef)
	}
	if input.VesselName != nil {
		shipment.VesselName = strings.TrimSpace(*input.VesselName)
	}
	if input.ETD != nil {
		shipment.ETD = input.ETD
	}
	if input.ETA != nil {
		shipment.ETA = input.ETA
	}
	if err := s.shipments.UpdateLogistics(shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// Advance moves a shipment one step forward through the execution states.
func (s *Service) Advance(shipmentID, orgID string) (*models.Shipment, error) {
	shipment, err := s.loadOwned(shipmentID, orgID)
	if err != nil {
		return nil, err
	}
	next, ok := legalTransitions[shipment.Status]
	if !ok {
		return nil, ErrInvalidState
	}
	if err := s.shipments.UpdateStatus(shipment.ID, next); err != nil {
		return nil, err
	}
	s.log.Info("shipment advanced",
		"shipment", shipment.ID, "from", string(shipment.Status), "to", string(next))
	shipment.Status = next
	return shipment, nil
}
