package models

import "time"

// SignatureStatus is the outcome recorded in a signature log entry.
type SignatureStatus string

const (
	SignatureApproved SignatureStatus = "APPROVED"
	SignatureRejected SignatureStatus = "REJECTED"
)

// SignatureLog is an immutable audit record of one approval or rejection
// event. Append-only; never updated or deleted.
type SignatureLog struct {
	ID               string          `json:"id"`
	ShipmentID       string          `json:"shipmentId"`
	MagicLinkID      string          `json:"magicLinkId"`
	Status           SignatureStatus `json:"status"`
	SignatureName    string          `json:"signatureName,omitempty"`
	RejectionComment string          `json:"rejectionComment,omitempty"`
	IPAddress        string          `json:"ipAddress"`
	UserAgent        string          `json:"userAgent,omitempty"`
	SignedAt         time.Time       `json:"signedAt"`
}
