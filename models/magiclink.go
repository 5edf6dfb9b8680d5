package models

import "time"

// MagicLink is a single-use, time-boxed bearer credential scoped to one
// shipment and one recipient email. At most one link per shipment is active
// at any time; issuing a new one deactivates all prior active links.
type MagicLink struct {
	ID          string     `json:"id"`
	ShipmentID  string     `json:"shipmentId"`
	Token       string     `json:"-"` // opaque, never serialized back out
	EmailSentTo string     `json:"emailSentTo"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	ConsumedAt  *time.Time `json:"consumedAt,omitempty"`
	IsActive    bool       `json:"isActive"`
}

// IsValid reports whether the link can still be presented: active, never
// consumed, and not yet expired.
func (m MagicLink) IsValid() bool {
	return m.IsActive && m.ConsumedAt == nil && time.Now().Before(m.ExpiresAt)
}
