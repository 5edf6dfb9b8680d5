package models

import "time"

// OrgType distinguishes the two trading-party roles an organization can hold.
type OrgType string

const (
	OrgTypeExporter OrgType = "EXPORTER"
	OrgTypeImporter OrgType = "IMPORTER"
)

// OrgStatus is the lifecycle status of an organization account.
type OrgStatus string

const (
	// OrgStatusActive is a fully onboarded organization.
	OrgStatusActive OrgStatus = "ACTIVE"
	// OrgStatusUnclaimed is a shadow organization created by a counterpart;
	// it becomes ACTIVE exactly once, when its pending user claims the account.
	OrgStatusUnclaimed OrgStatus = "UNCLAIMED"
	// OrgStatusSuspended is an organization blocked by a platform admin.
	OrgStatusSuspended OrgStatus = "SUSPENDED"
)

// DefaultRefPrefix is used for internal shipment references when an
// organization has no prefix of its own.
const DefaultRefPrefix = "EXP"

// Organization is the identity of a trading party (exporter or importer).
type Organization struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TaxID          string    `json:"taxId,omitempty"`
	Country        string    `json:"country"`
	Type           OrgType   `json:"type"`
	Status         OrgStatus `json:"status"`
	DefaultAddress string    `json:"defaultAddress,omitempty"`
	ContactEmail   string    `json:"contactEmail,omitempty"`
	RefPrefix      string    `json:"-"`
	CreatedByOrgID string    `json:"-"` // set only for shadow organizations
	CreatedAt      time.Time `json:"createdAt"`
}

// ShipmentRefPrefix returns the prefix used for this organization's internal
// shipment references.
func (o Organization) ShipmentRefPrefix() string {
	if o.RefPrefix == "" {
		return DefaultRefPrefix
	}
	return o.RefPrefix
}
