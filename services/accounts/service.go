// Package accounts handles authentication: password login, token refresh
// and the account claim flow for invite-pending users.
package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
	"exportdesk/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountPending     = errors.New("account has not been claimed yet")
	ErrClaimInvalid       = errors.New("claim token is invalid or already used")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrRefreshInvalid     = errors.New("refresh token is invalid")
)

const minPasswordLength = 6

// Service authenticates users and manages their credentials.
type Service struct {
	users  *database.UserRepository
	orgs   *database.OrganizationRepository
	tokens *database.TokenRepository
	issuer *auth.Issuer

	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *slog.Logger
}

// NewService creates an accounts service.
func NewService(
	users *database.UserRepository,
	orgs *database.OrganizationRepository,
	tokens *database.TokenRepository,
	issuer *auth.Issuer,
	accessTTL, refreshTTL time.Duration,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:      users,
		orgs:       orgs,
		tokens:     tokens,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session bundles the tokens with the authenticated user and organization.
type Session struct {
	TokenPair
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
}

// Login verifies the password and issues a session/refresh token pair.
// Invite-pending users cannot log in; they must claim their account first.
func (s *Service) Login(email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(strings.TrimSpace(email))
	if err != nil {
		if err == database.ErrNotFound {
			// Use bcrypt comparison anyway to keep response time uniform.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$dummy"), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if user.InvitePending || user.PasswordHash == "" {
		return nil, ErrAccountPending
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLastLogin(user.ID); err != nil {
		s.log.Warn("failed to record last login", "user", user.ID, "error", err)
	}
	s.log.Info("user logged in", "user", user.ID, "org", user.OrganizationID)
	return session, nil
}

// Refresh trades a valid, unrevoked refresh token for a new token pair. The
// presented token is revoked afterwards so each refresh token is single use.
func (s *Service) Refresh(refreshToken string) (*Session, error) {
	claims, err := s.issuer.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, ErrRefreshInvalid
	}
	revoked, err := s.tokens.IsRevoked(claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRefreshInvalid
	}

	user, err := s.users.GetByID(claims.Subject)
	if err != nil {
		return nil, ErrRefreshInvalid
	}
	if !user.IsActive || user.InvitePending {
		return nil, ErrRefreshInvalid
	}

	if err := s.tokens.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueSession(user)
}

// Logout revokes the refresh token if it is still valid. Expired or garbage
// tokens are ignored; logout never fails the client.
func (s *Service) Logout(refreshToken string) {
	claims, err := s.issuer.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return
	}
	if err := s.tokens.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.Warn("failed to revoke refresh token", "error", err)
	}
}

// Me returns the user and organization for an authenticated session. The
// organization is nil for platform admins, who belong to none.
func (s *Service) Me(userID string) (*models.User, *models.Organization, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	org, err := s.userOrg(user)
	if err != nil {
		return nil, nil, err
	}
	return user, org, nil
}

func (s *Service) userOrg(user *models.User) (*models.Organization, error) {
	if user.OrganizationID == "" {
		return nil, nil
	}
	return s.orgs.GetByID(user.OrganizationID)
}

// ClaimPreview is what the claim page shows before the user sets a password.
type ClaimPreview struct {
	Email            string `json:"email"`
	OrganizationName string `json:"organizationName"`
}

// VerifyClaim checks a claim token and returns the identity it would
// activate, without consuming anything.
func (s *Service) VerifyClaim(claimToken string) (*ClaimPreview, error) {
	user, org, err := s.resolveClaim(claimToken)
	if err != nil {
		return nil, err
	}
	return &ClaimPreview{Email: user.Email, OrganizationName: org.Name}, nil
}

// Claim completes the account claim: sets the password, flips the user out
// of invite-pending, activates an UNCLAIMED organization and logs the user
// in. Replaying a claim token afterwards fails because the pending flag is
// already cleared.
func (s *Service) Claim(claimToken, name, password string) (*Session, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	user, org, err := s.resolveClaim(claimToken)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = user.Name
	}
	if err := s.users.CompleteClaim(user.ID, string(hash), name); err != nil {
		if err == database.ErrNotFound {
			return nil, ErrClaimInvalid
		}
		return nil, err
	}
	if err := s.orgs.ActivateIfUnclaimed(org.ID); err != nil {
		return nil, fmt.Errorf("activate organization: %w", err)
	}
	s.log.Info("account claimed", "user", user.ID, "org", org.ID)

	user, err = s.users.GetByID(user.ID)
	if err != nil {
		return nil, err
	}
	return s.issueSession(user)
}

func (s *Service) resolveClaim(claimToken string) (*models.User, *models.Organization, error) {
	claims, err := s.issuer.Verify(claimToken, auth.KindClaim)
	if err != nil {
		return nil, nil, ErrClaimInvalid
	}
	user, err := s.users.GetByID(claims.Subject)
	if err != nil {
		return nil, nil, ErrClaimInvalid
	}
	if !user.InvitePending || !user.IsActive {
		return nil, nil, ErrClaimInvalid
	}
	org, err := s.orgs.GetByID(user.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return user, org, nil
}

func (s *Service) issueSession(user *models.User) (*Session, error) {
	access, err := s.issuer.Issue(user.ID, user.Email, auth.KindSession, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.Issue(user.ID, user.Email, auth.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	org, err := s.userOrg(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		TokenPair:    TokenPair{AccessToken: access, RefreshToken: refresh},
		User:         user,
		Organization: org,
	}, nil
}
