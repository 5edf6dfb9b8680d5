package models

import (
	"encoding/json"
	"time"
)

// UserRole is the role a user holds inside its organization.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOperator UserRole = "OPERATOR"
)

// User is an actor on the platform. A user belongs to at most one
// organization; platform admins may have none. InvitePending marks a ghost
// account created on behalf of a not-yet-onboarded counterpart.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	OrganizationID  string    `json:"organizationId,omitempty"`
	Role            UserRole  `json:"role"`
	IsPlatformAdmin bool      `json:"isPlatformAdmin"`
	InvitePending   bool      `json:"invitePending"`
	IsActive        bool      `json:"isActive"`
	PasswordHash    string    `json:"-"` // bcrypt hash, never serialized
	CreatedAt       time.Time `json:"createdAt"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
}

// MarshalJSON keeps the password hash out of API responses even if the
// struct tag is ever dropped.
func (u User) MarshalJSON() ([]byte, error) {
	type userAlias User // prevent recursion
	a := userAlias(u)
	a.PasswordHash = ""
	return json.Marshal(a)
}
