package models

import "time"

// BusinessRelation is a directed address-book edge: HostOrgID has
// PartnerOrgID in its client list. Unique per (host, partner) pair.
type BusinessRelation struct {
	ID           string    `json:"id"`
	HostOrgID    string    `json:"hostOrgId"`
	PartnerOrgID string    `json:"partnerOrgId"`
	Alias        string    `json:"alias,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
