// Package signatures implements the magic-link signing workflow: the public
// signing page view and the single-use approve/reject decision.
package signatures

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
	"exportdesk/models"
	"exportdesk/services/shipments"
)

var (
	ErrLinkInvalid      = errors.New("signature link is invalid, expired or already used")
	ErrClaimRequired    = errors.New("account must be claimed before signing")
	ErrAlreadyProcessed = errors.New("shipment has already been processed")
	ErrNameRequired     = errors.New("signer name is required to approve")
	ErrCommentRequired  = errors.New("a comment is required to reject")
	ErrUnknownAction    = errors.New("action must be approve or reject")
)

// claimTokenTTL is deliberately longer than the default claim window: the
// recipient found the link in their inbox, so give them a month to onboard.
const claimTokenTTL = 30 * 24 * time.Hour

// Service handles magic-link views and signature decisions.
type Service struct {
	links      *database.MagicLinkRepository
	signatures *database.SignatureRepository
	shipRepo   *database.ShipmentRepository
	users      *database.UserRepository
	shipments  *shipments.Service
	issuer     *auth.Issuer
	log        *slog.Logger
}

// NewService creates a signatures service.
func NewService(
	links *database.MagicLinkRepository,
	signatures *database.SignatureRepository,
	shipRepo *database.ShipmentRepository,
	users *database.UserRepository,
	shipSvc *shipments.Service,
	issuer *auth.Issuer,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		links:      links,
		signatures: signatures,
		shipRepo:   shipRepo,
		users:      users,
		shipments:  shipSvc,
		issuer:     issuer,
		log:        log,
	}
}

// PageView is everything the public signing page needs to render.
type PageView struct {
	Confirmation  *shipments.SalesConfirmation `json:"confirmation"`
	CanSign       bool                         `json:"canSign"`
	ClaimRequired bool                         `json:"claimRequired"`
	ClaimToken    string                       `json:"claimToken,omitempty"`
	ExpiresAt     time.Time                    `json:"expiresAt"`
}

// View resolves a magic link into the signing page snapshot. When the buyer
// organization is still UNCLAIMED a claim token for its pending ghost user
// rides along so the page can offer onboarding.
func (s *Service) View(shipmentID, token string) (*PageView, error) {
	link, err := s.validLink(shipmentID, token)
	if err != nil {
		return nil, err
	}

	shipment, err := s.shipRepo.GetByID(shipmentID)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	confirmation, err := s.shipments.BuildConfirmation(shipment)
	if err != nil {
		return nil, err
	}

	view := &PageView{
		Confirmation: confirmation,
		CanSign:      shipment.Signable(),
		ExpiresAt:    link.ExpiresAt,
	}
	buyerOrg, err := s.shipments.BuyerOrg(shipmentID)
	if err != nil {
		return nil, err
	}
	if buyerOrg.Status == models.OrgStatusUnclaimed {
		view.CanSign = false
		view.ClaimRequired = true
		view.ClaimToken = s.mintClaimToken(buyerOrg.ID)
	}
	return view, nil
}

// SubmitInput is the decision payload from the signing page.
type SubmitInput struct {
	Action        string `json:"action"`
	SignatureName string `json:"signatureName"`
	Comment       string `json:"comment"`
	IPAddress     string `json:"-"`
	UserAgent     string `json:"-"`
}

// Outcome reports the result of a processed decision.
type Outcome struct {
	Status models.ShipmentStatus `json:"status"`
	// ClaimToken is offered after approval when the buyer still has a
	// pending ghost user that could claim the account.
	ClaimToken string `json:"claimToken,omitempty"`
}

// Submit processes an approve or reject decision. Checks run in a fixed
// order: link validity, buyer claimed, shipment still open, payload shape.
// The link consumption, audit record and status transition then commit
// atomically; when two submissions race, exactly one wins and the loser sees
// an invalid link.
func (s *Service) Submit(shipmentID, token string, input SubmitInput) (*Outcome, error) {
	link, err := s.validLink(shipmentID, token)
	if err != nil {
		return nil, err
	}

	buyerOrg, err := s.shipments.BuyerOrg(shipmentID)
	if err != nil {
		return nil, err
	}
	if buyerOrg.Status == models.OrgStatusUnclaimed {
		return nil, ErrClaimRequired
	}

	shipment, err := s.shipRepo.GetByID(shipmentID)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	if !shipment.Signable() {
		return nil, ErrAlreadyProcessed
	}

	entry := &models.SignatureLog{
		ShipmentID:  shipmentID,
		MagicLinkID: link.ID,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	}
	var newStatus models.ShipmentStatus
	switch input.Action {
	case "approve":
		name := strings.TrimSpace(input.SignatureName)
		if name == "" {
			return nil, ErrNameRequired
		}
		entry.Status = models.SignatureApproved
		entry.SignatureName = name
		newStatus = models.StatusSigned
	case "reject":
		comment := strings.TrimSpace(input.Comment)
		if comment == "" {
			return nil, ErrCommentRequired
		}
		entry.Status = models.SignatureRejected
		entry.RejectionComment = comment
		newStatus = models.StatusDraft
	default:
		return nil, ErrUnknownAction
	}

	if err := s.signatures.RecordDecision(entry, newStatus); err != nil {
		if err == database.ErrLinkConsumed {
			return nil, ErrLinkInvalid
		}
		return nil, err
	}
	s.log.Info("signature decision recorded",
		"shipment", shipmentID, "status", string(entry.Status), "ip", input.IPAddress)

	outcome := &Outcome{Status: newStatus}
	if entry.Status == models.SignatureApproved {
		// The buyer org is claimed, but the individual recipient may still
		// be a ghost user; offer onboarding one more time.
		outcome.ClaimToken = s.mintClaimToken(buyerOrg.ID)
	}
	return outcome, nil
}

// History returns the audit trail for a shipment.
func (s *Service) History(shipmentID string) ([]models.SignatureLog, error) {
	return s.signatures.ListForShipment(shipmentID)
}

func (s *Service) validLink(shipmentID, token string) (*models.MagicLink, error) {
	link, err := s.links.GetByShipmentToken(shipmentID, token)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	if !link.IsValid() {
		return nil, ErrLinkInvalid
	}
	return link, nil
}

// mintClaimToken issues a claim token for the organization's pending ghost
// user, or returns empty when no ghost user remains.
func (s *Service) mintClaimToken(orgID string) string {
	ghost, err := s.users.FirstPendingForOrg(orgID)
	if err != nil {
		return ""
	}
	token, err := s.issuer.Issue(ghost.ID, ghost.Email, auth.KindClaim, claimTokenTTL)
	if err != nil {
		s.log.Warn("failed to mint claim token", "org", orgID, "error", err)
		return ""
	}
	return token
}
