package models

import "time"

// ShipmentStatus is a state in the shipment lifecycle.
type ShipmentStatus string

const (
	StatusDraft         ShipmentStatus = "DRAFT"
	StatusSCSent        ShipmentStatus = "SC_SENT"
	StatusSigned        ShipmentStatus = "SIGNED"
	StatusLabelPending  ShipmentStatus = "LABEL_PENDING"
	StatusLabelApproved ShipmentStatus = "LABEL_APPROVED"
	StatusPacking       ShipmentStatus = "PACKING"
	StatusShipped       ShipmentStatus = "SHIPPED"
	StatusCompleted     ShipmentStatus = "COMPLETED"
)

// ParticipantRole names the role an organization plays on a shipment.
type ParticipantRole string

const (
	RoleSeller    ParticipantRole = "SELLER"
	RoleBuyer     ParticipantRole = "BUYER"
	RoleConsignee ParticipantRole = "CONSIGNEE"
	RoleNotify    ParticipantRole = "NOTIFY"
)

// ValidIncoterms are the commercial terms accepted on shipment creation.
var ValidIncoterms = []string{
	"EXW", "FCA", "FAS", "FOB", "CFR", "CIF", "CPT", "CIP", "DAP", "DPU", "DDP",
}

// IsValidIncoterm reports whether term is one of the Incoterms 2020 codes.
func IsValidIncoterm(term string) bool {
	for _, t := range ValidIncoterms {
		if t == term {
			return true
		}
	}
	return false
}

// Shipment is the central workflow object: one export, its commercial terms
// and its lifecycle status.
type Shipment struct {
	ID              string         `json:"id"`
	OwnerOrgID      string         `json:"ownerOrgId"`
	InternalRef     string         `json:"internalRef"`
	Status          ShipmentStatus `json:"status"`
	Incoterm        string         `json:"incoterm"`
	DestinationPort string         `json:"destinationPort,omitempty"`
	PaymentTerms    string         `json:"paymentTerms,omitempty"`
	Currency        string         `json:"currency"`
	// BuyerEmail overrides the buyer organization's contact email as the
	// destination for signature requests.
	BuyerEmail string     `json:"buyerEmail,omitempty"`
	BookingRef string     `json:"bookingRef,omitempty"`
	VesselName string     `json:"vesselName,omitempty"`
	ETD        *time.Time `json:"etd,omitempty"`
	ETA        *time.Time `json:"eta,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Editable reports whether line items and terms may still change. A shipment
// is locked once it has been signed.
func (s Shipment) Editable() bool {
	return s.Status == StatusDraft || s.Status == StatusSCSent
}

// Signable reports whether the shipment can still accept a signature
// decision. SIGNED is reachable only from DRAFT or SC_SENT.
func (s Shipment) Signable() bool {
	return s.Status == StatusDraft || s.Status == StatusSCSent
}

// ShipmentParticipant binds an organization to a shipment under a role.
// Unique per (shipment, organization, role).
type ShipmentParticipant struct {
	ID             string          `json:"id"`
	ShipmentID     string          `json:"shipmentId"`
	OrganizationID string          `json:"organizationId"`
	Role           ParticipantRole `json:"role"`
}

// SalesItem is a line item owned by exactly one shipment. The total is
// computed, never stored.
type SalesItem struct {
	ID          string `json:"id"`
	ShipmentID  string `json:"-"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
	PriceCents  int64  `json:"-"`
	Quantity    int64  `json:"quantity"`
}

// TotalCents returns price x quantity in cents.
func (i SalesItem) TotalCents() int64 {
	return i.PriceCents * i.Quantity
}
