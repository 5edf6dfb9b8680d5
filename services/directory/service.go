// Package directory manages organizations, users and the per-tenant address
// book of business relations.
package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"exportdesk/internal/database"
	"exportdesk/models"
)

var (
	ErrNameRequired    = errors.New("partner name is required")
	ErrCountryRequired = errors.New("partner country is required")
	ErrNoOrganization  = errors.New("user has no organization")
	ErrPartnerNotFound = errors.New("partner not found in address book")
)

// Service coordinates identity records: organizations, their users and the
// relation edges between them.
type Service struct {
	orgs      *database.OrganizationRepository
	users     *database.UserRepository
	relations *database.RelationRepository
	shipments *database.ShipmentRepository
	log       *slog.Logger
}

// NewService creates a directory service.
func NewService(
	orgs *database.OrganizationRepository,
	users *database.UserRepository,
	relations *database.RelationRepository,
	shipments *database.ShipmentRepository,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{orgs: orgs, users: users, relations: relations, shipments: shipments, log: log}
}

// PartnerInput describes a counterpart added to an address book.
type PartnerInput struct {
	Name           string
	Country        string
	TaxID          string
	ContactEmail   string
	DefaultAddress string
	Alias          string
}

// AddPartnerResult reports whether the partner already existed on the
// platform or was created as a shadow organization.
type AddPartnerResult struct {
	Organization *models.Organization
	WasExisting  bool
}

// AddPartner links a counterpart into the host's address book. When an
// organization with the same tax ID (or, failing that, the same name)
// already exists on the platform, only the relation edge is added; otherwise
// a shadow organization is created with status UNCLAIMED. No ghost user is
// provisioned here; that happens lazily, on the first signature request
// naming this partner as buyer.
func (s *Service) AddPartner(hostOrgID string, input PartnerInput) (*AddPartnerResult, error) {
	if hostOrgID == "" {
		return nil, ErrNoOrganization
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(input.Country) == "" {
		return nil, ErrCountryRequired
	}

	partner, existing, err := s.findExisting(input)
	if err != nil {
		return nil, err
	}

	if partner == nil {
		partner = &models.Organization{
			Name:           input.Name,
			TaxID:          strings.TrimSpace(input.TaxID),
			Country:        strings.TrimSpace(input.Country),
			Type:           models.OrgTypeImporter,
			Status:         models.OrgStatusUnclaimed,
			ContactEmail:   strings.TrimSpace(input.ContactEmail),
			DefaultAddress: input.DefaultAddress,
			CreatedByOrgID: hostOrgID,
		}
		if err := s.orgs.Create(partner); err != nil {
			return nil, fmt.Errorf("create shadow organization: %w", err)
		}
		s.log.Info("shadow organization created",
			"org", partner.ID, "name", partner.Name, "created_by", hostOrgID)
	}

	alias := strings.TrimSpace(input.Alias)
	if alias == "" {
		alias = partner.Name
	}
	rel := &models.BusinessRelation{
		HostOrgID:    hostOrgID,
		PartnerOrgID: partner.ID,
		Alias:        alias,
	}
	if err := s.relations.Create(rel); err != nil && err != database.ErrDuplicate {
		return nil, fmt.Errorf("create relation: %w", err)
	}

	return &AddPartnerResult{Organization: partner, WasExisting: existing}, nil
}

func (s *Service) findExisting(input PartnerInput) (*models.Organization, bool, error) {
	if taxID := strings.TrimSpace(input.TaxID); taxID != "" {
		org, err := s.orgs.FindByTaxID(taxID)
		if err == nil {
			return org, true, nil
		}
		if err != database.ErrNotFound {
			return nil, false, err
		}
	}
	org, err := s.orgs.FindByName(input.Name)
	if err == nil {
		return org, true, nil
	}
	if err != database.ErrNotFound {
		return nil, false, err
	}
	return nil, false, nil
}

// Partners returns the host's address book.
func (s *Service) Partners(hostOrgID string) ([]database.Partner, error) {
	if hostOrgID == "" {
		return nil, ErrNoOrganization
	}
	return s.relations.ListForHost(hostOrgID)
}

// Partner returns one address-book entry; callers only see partners they
// have linked themselves.
func (s *Service) Partner(hostOrgID, partnerOrgID string) (*database.Partner, error) {
	if hostOrgID == "" {
		return nil, ErrNoOrganization
	}
	rel, err := s.relations.Get(hostOrgID, partnerOrgID)
	if err == database.ErrNotFound {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(partnerOrgID)
	if err != nil {
		return nil, err
	}
	return &database.Partner{Relation: *rel, Organization: *org}, nil
}

// ContactSuggestion is one previously used buyer email for a partner.
type ContactSuggestion struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsPending bool   `json:"isPending"`
}

// PartnerEmails returns the buyer emails the host has used on its own
// shipments with this partner. Scoped to the caller's shipments so one
// exporter never sees the contacts another exporter added.
func (s *Service) PartnerEmails(hostOrgID, partnerOrgID string) ([]ContactSuggestion, error) {
	if _, err := s.Partner(hostOrgID, partnerOrgID); err != nil {
		return nil, err
	}

	shipments, err := s.shipments.ListForOrg(hostOrgID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []ContactSuggestion
	for _, sh := range shipments {
		if sh.OwnerOrgID != hostOrgID || sh.BuyerEmail == "" {
			continue
		}
		buyer, err := s.shipments.ParticipantByRole(sh.ID, models.RoleBuyer)
		if err != nil || buyer.OrganizationID != partnerOrgID {
			continue
		}
		key := strings.ToLower(sh.BuyerEmail)
		if seen[key] {
			continue
		}
		seen[key] = true

		suggestion := ContactSuggestion{Email: sh.BuyerEmail, IsPending: true}
		if user, err := s.users.GetByEmail(sh.BuyerEmail); err == nil {
			suggestion.Name = user.Name
			suggestion.IsPending = user.InvitePending
		} else {
			suggestion.Name = sh.BuyerEmail[:strings.Index(sh.BuyerEmail+"@", "@")]
		}
		out = append(out, suggestion)
	}
	return out, nil
}

// EnsureGhostUser idempotently provisions an invite-pending user for the
// given organization and email, returning the existing user when the email
// is already registered. This is the only place ghost users come from.
func (s *Service) EnsureGhostUser(org *models.Organization, email string) (*models.User, error) {
	email = strings.TrimSpace(email)

	existing, err := s.users.GetByEmail(email)
	if err == nil {
		return existing, nil
	}
	if err != database.ErrNotFound {
		return nil, err
	}

	ghost := &models.User{
		Email:          email,
		Name:           org.Name,
		OrganizationID: org.ID,
		Role:           models.RoleOperator,
		InvitePending:  true,
		IsActive:       true,
	}
	if err := s.users.Create(ghost); err != nil {
		if err == database.ErrDuplicate {
			// Lost a race with a concurrent provisioner; the row is there now.
			return s.users.GetByEmail(email)
		}
		return nil, fmt.Errorf("create ghost user: %w", err)
	}
	s.log.Info("ghost user created", "email", email, "org", org.ID)
	return ghost, nil
}
