// Package platform implements the operator back office: platform-admin
// login, the dashboard stats, organization and user administration and the
// system configuration store.
package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
	"exportdesk/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotPlatformAdmin   = errors.New("user is not a platform admin")
	ErrOrgNotFound        = errors.New("organization not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrNameRequired       = errors.New("name is required")
)

const platformTokenTTL = 8 * time.Hour

// Service exposes the platform admin operations.
type Service struct {
	orgs      *database.OrganizationRepository
	users     *database.UserRepository
	shipments *database.ShipmentRepository
	config    *database.SysConfigRepository
	issuer    *auth.Issuer
	log       *slog.Logger
}

// NewService creates a platform service.
func NewService(
	orgs *database.OrganizationRepository,
	users *database.UserRepository,
	shipments *database.ShipmentRepository,
	config *database.SysConfigRepository,
	issuer *auth.Issuer,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{orgs: orgs, users: users, shipments: shipments, config: config, issuer: issuer, log: log}
}

// Login authenticates a platform admin and issues a platform-kind token.
// Regular tenant credentials are rejected even when valid.
func (s *Service) Login(email, pass string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(strings.TrimSpace(email))
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$dummy"), []byte(pass))
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(pass)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsPlatformAdmin || !user.IsActive {
		return "", nil, ErrNotPlatformAdmin
	}

	token, err := s.issuer.Issue(user.ID, user.Email, auth.KindPlatform, platformTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue platform token: %w", err)
	}
	s.log.Info("platform admin logged in", "user", user.ID)
	return token, user, nil
}

// Stats is the platform dashboard payload.
type Stats struct {
	Organizations   database.OrgStats             `json:"organizations"`
	Users           database.UserStats            `json:"users"`
	Shipments       map[models.ShipmentStatus]int `json:"shipmentsByStatus"`
	ShipmentsWeek   int                           `json:"shipmentsLast7Days"`
	RecentOrgs      []models.Organization         `json:"recentOrganizations"`
	RecentShipments []models.Shipment             `json:"recentShipments"`
}

// DashboardStats aggregates the counters shown on the back office landing
// page.
func (s *Service) DashboardStats() (*Stats, error) {
	orgStats, err := s.orgs.Stats()
	if err != nil {
		return nil, err
	}
	userStats, err := s.users.Stats()
	if err != nil {
		return nil, err
	}
	byStatus, err := s.shipments.CountsByStatus()
	if err != nil {
		return nil, err
	}
	week, err := s.shipments.CountSince(time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	recentOrgs, err := s.orgs.RecentSince(time.Now().UTC().AddDate(0, 0, -30), 10)
	if err != nil {
		return nil, err
	}
	recentShipments, err := s.shipments.Recent(10)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Organizations:   orgStats,
		Users:           userStats,
		Shipments:       byStatus,
		ShipmentsWeek:   week,
		RecentOrgs:      recentOrgs,
		RecentShipments: recentShipments,
	}, nil
}

// ListOrganizations returns every organization on the platform.
func (s *Service) ListOrganizations() ([]models.Organization, error) {
	return s.orgs.List()
}

// OrgInput is the admin-facing organization payload.
type OrgInput struct {
	Name           string `json:"name"`
	TaxID          string `json:"taxId"`
	Country        string `json:"country"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	DefaultAddress string `json:"defaultAddress"`
	ContactEmail   string `json:"contactEmail"`
	RefPrefix      string `json:"refPrefix"`
}

// CreateOrganization registers an organization directly, bypassing the
// address-book flow. Used to onboard exporters.
func (s *Service) CreateOrganization(input OrgInput) (*models.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	org := &models.Organization{
		Name:           name,
		TaxID:          strings.TrimSpace(input.TaxID),
		Country:        strings.TrimSpace(input.Country),
		Type:           models.OrgType(input.Type),
		Status:         models.OrgStatus(input.Status),
		DefaultAddress: input.DefaultAddress,
		ContactEmail:   strings.TrimSpace(input.ContactEmail),
		RefPrefix:      strings.ToUpper(strings.TrimSpace(input.RefPrefix)),
	}
	if org.Type == "" {
		org.Type = models.OrgTypeExporter
	}
	if org.Status == "" {
		org.Status = models.OrgStatusActive
	}
	if err := s.orgs.Create(org); err != nil {
		return nil, err
	}
	s.log.Info("organization created by platform admin", "org", org.ID, "name", org.Name)
	return org, nil
}

// UpdateOrganization applies admin edits to an organization.
func (s *Service) UpdateOrganization(id string, input OrgInput) (*models.Organization, error) {
	org, err := s.orgs.GetByID(id)
	if err == database.ErrNotFound {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		org.Name = name
	}
	if input.TaxID != "" {
		org.TaxID = strings.TrimSpace(input.TaxID)
	}
	if input.Country != "" {
		org.Country = strings.TrimSpace(input.Country)
	}
	if input.Type != "" {
		org.Type = models.OrgType(input.Type)
	}
	if input.Status != "" {
		org.Status = models.OrgStatus(input.Status)
	}
	if input.DefaultAddress != "" {
		org.DefaultAddress = input.DefaultAddress
	}
	if input.ContactEmail != "" {
		org.ContactEmail = strings.TrimSpace(input.ContactEmail)
	}
	if input.RefPrefix != "" {
		org.RefPrefix = strings.ToUpper(strings.TrimSpace(input.RefPrefix))
	}
	if err := s.orgs.Update(org); err != nil {
		return nil, err
	}
	return org, nil
}

// DeleteOrganization removes an organization and, through cascades, its
// shipments.
func (s *Service) DeleteOrganization(id string) error {
	if err := s.orgs.Delete(id); err != nil {
		if err == database.ErrNotFound {
			return ErrOrgNotFound
		}
		return err
	}
	s.log.Info("organization deleted by platform admin", "org", id)
	return nil
}

// ListUsers returns every tenant user.
func (s *Service) ListUsers() ([]models.User, error) {
	return s.users.ListTenantUsers()
}

// UserInput is the admin-facing user payload.
type UserInput struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	Password       string `json:"password"`
}

// CreatedUser pairs a new user with its initial password. The password is
// returned exactly once; only the hash is stored.
type CreatedUser struct {
	User            *models.User `json:"user"`
	InitialPassword string       `json:"initialPassword"`
}

// CreateUser registers a tenant user. When no password is supplied a random
// one is generated and handed back for out-of-band delivery.
func (s *Service) CreateUser(input UserInput) (*CreatedUser, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, ErrNameRequired
	}
	if _, err := s.orgs.GetByID(input.OrganizationID); err != nil {
		if err == database.ErrNotFound {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}

	pass := input.Password
	if pass == "" {
		generated, err := password.Generate(16, 4, 2, false, false)
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		pass = generated
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.UserRole(input.Role)
	if role == "" {
		role = models.RoleOperator
	}
	user := &models.User{
		Email:          email,
		Name:           strings.TrimSpace(input.Name),
		OrganizationID: input.OrganizationID,
		Role:           role,
		PasswordHash:   string(hash),
		IsActive:       true,
	}
	if err := s.users.Create(user); err != nil {
		if err == database.ErrDuplicate {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info("user created by platform admin", "user", user.ID, "org", user.OrganizationID)

	out := &CreatedUser{User: user}
	if input.Password == "" {
		out.InitialPassword = pass
	}
	return out, nil
}

// UpdateUser applies admin edits: name, role, active flag.
func (s *Service) UpdateUser(id string, name, role string, isActive *bool) (*models.User, error) {
	user, err := s.users.GetByID(id)
	if err == database.ErrNotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(name); n != "" {
		user.Name = n
	}
	if role != "" {
		user.Role = models.UserRole(role)
	}
	if isActive != nil {
		user.IsActive = *isActive
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a tenant user.
func (s *Service) DeleteUser(id string) error {
	if err := s.users.Delete(id); err != nil {
		if err == database.ErrNotFound {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// Config returns the full system configuration map.
func (s *Service) Config() (map[string]string, error) {
	return s.config.All()
}

// SetConfig upserts one configuration key.
func (s *Service) SetConfig(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNameRequired
	}
	if err := s.config.Set(key, value); err != nil {
		return err
	}
	s.log.Info("system config updated", "key", key)
	return nil
}
