package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exportdesk/models"
)

// UserRepository persists users.
type UserRepository struct {
	conn *sql.DB
}

// NewUserRepository creates a user repository.
func NewUserRepository(conn *sql.DB) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `id, email, name, COALESCE(organization_id, ''), role,
	is_platform_admin, invite_pending, is_active, password_hash, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.OrganizationID, &u.Role,
		&u.IsPlatformAdmin, &u.InvitePending, &u.IsActive, &u.PasswordHash,
		&u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

// Create inserts a new user, assigning an ID if absent. Fails with
// ErrDuplicate when the email is already registered.
func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleOperator
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	var orgID any
	if user.OrganizationID != "" {
		orgID = user.OrganizationID
	}

	_, err := r.conn.Exec(`INSERT INTO users
		(id, email, name, organization_id, role, is_platform_admin, invite_pending, is_active, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, orgID, user.Role,
		user.IsPlatformAdmin, user.InvitePending, user.IsActive, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given ID.
func (r *UserRepository) GetByID(id string) (*models.User, error) {
	row := r.conn.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByEmail returns the user with the given email (case-insensitive).
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	row := r.conn.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// FirstPendingForOrg returns the oldest invite-pending user of an
// organization, or ErrNotFound.
func (r *UserRepository) FirstPendingForOrg(orgID string) (*models.User, error) {
	row := r.conn.QueryRow(`SELECT `+userColumns+` FROM users
		WHERE organization_id = ? AND invite_pending = 1 AND is_active = 1
		ORDER BY created_at LIMIT 1`, orgID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pending user for org: %w", err)
	}
	return user, nil
}

// CompleteClaim sets the user's credentials and clears the invite-pending
// flag. Fails with ErrNotFound when the user is not (or no longer)
// invite-pending, which makes a replayed claim token inert.
func (r *UserRepository) CompleteClaim(id, passwordHash, name string) error {
	res, err := r.conn.Exec(`UPDATE users SET
		password_hash = ?,
		name = CASE WHEN ? != '' THEN ? ELSE name END,
		invite_pending = 0
		WHERE id = ? AND invite_pending = 1 AND is_active = 1`,
		passwordHash, name, name, id)
	if err != nil {
		return fmt.Errorf("complete claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(id, passwordHash string) error {
	res, err := r.conn.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful authentication time.
func (r *UserRepository) TouchLastLogin(id string) error {
	_, err := r.conn.Exec(`UPDATE users SET last_login = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// Update persists mutable user fields managed by platform admins.
func (r *UserRepository) Update(user *models.User) error {
	var orgID any
	if user.OrganizationID != "" {
		orgID = user.OrganizationID
	}
	res, err := r.conn.Exec(`UPDATE users SET
		email = ?, name = ?, organization_id = ?, role = ?, is_platform_admin = ?, is_active = ?, invite_pending = ?
		WHERE id = ?`,
		user.Email, user.Name, orgID, user.Role, user.IsPlatformAdmin, user.IsActive, user.InvitePending, user.ID)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(id string) error {
	res, err := r.conn.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTenantUsers returns all non-platform-admin users, newest first.
func (r *UserRepository) ListTenantUsers() ([]models.User, error) {
	rows, err := r.conn.Query(`SELECT ` + userColumns + ` FROM users
		WHERE is_platform_admin = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UserStats is a platform-level breakdown of user counts.
type UserStats struct {
	Total   int `json:"totalUsers"`
	Active  int `json:"activeUsers"`
	Pending int `json:"pendingUsers"`
}

// Stats computes tenant-user counts for the platform dashboard.
func (r *UserRepository) Stats() (UserStats, error) {
	var s UserStats
	err := r.conn.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(is_active = 1 AND invite_pending = 0), 0),
		COALESCE(SUM(invite_pending = 1), 0)
		FROM users WHERE is_platform_admin = 0`).Scan(&s.Total, &s.Active, &s.Pending)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}
