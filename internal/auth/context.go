package auth

import "net/http"

// ContextKey is the type used for request context keys.
type ContextKey string

const (
	// ContextKeyUserID is the key for the authenticated user's ID.
	ContextKeyUserID ContextKey = "userID"
	// ContextKeyOrgID is the key for the user's organization ID.
	ContextKeyOrgID ContextKey = "orgID"
	// ContextKeyIsPlatformAdmin is the key for the platform-admin flag.
	ContextKeyIsPlatformAdmin ContextKey = "isPlatformAdmin"
)

// GetUserID retrieves the authenticated user ID from the request context.
func GetUserID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyUserID).(string); ok {
		return id
	}
	return ""
}

// GetOrgID retrieves the caller's organization ID from the request context.
// Empty for platform admins without an organization.
func GetOrgID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyOrgID).(string); ok {
		return id
	}
	return ""
}

// IsPlatformAdmin checks whether the caller is a platform admin.
func IsPlatformAdmin(r *http.Request) bool {
	if admin, ok := r.Context().Value(ContextKeyIsPlatformAdmin).(bool); ok {
		return admin
	}
	return false
}
