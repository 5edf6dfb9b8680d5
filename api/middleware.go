package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"exportdesk/internal/auth"
	"exportdesk/internal/database"
)

// Re-export from auth package so handlers only import api
var (
	GetUserID       = auth.GetUserID
	GetOrgID        = auth.GetOrgID
	IsPlatformAdmin = auth.IsPlatformAdmin
)

// SessionAuthMiddleware validates session-kind access tokens and injects the
// caller's identity into the request context. The user is loaded on every
// request so deactivated accounts lose access immediately.
func SessionAuthMiddleware(issuer *auth.Issuer, users *database.UserRepository) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			claims, err := issuer.Verify(token, auth.KindSession)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			user, err := users.GetByID(claims.Subject)
			if err != nil || !user.IsActive || user.InvitePending {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), auth.ContextKeyUserID, user.ID)
			ctx = context.WithValue(ctx, auth.ContextKeyOrgID, user.OrganizationID)
			ctx = context.WithValue(ctx, auth.ContextKeyIsPlatformAdmin, user.IsPlatformAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PlatformAuthMiddleware admits only platform-kind tokens held by active
// platform admins.
func PlatformAuthMiddleware(issuer *auth.Issuer, users *database.UserRepository) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			claims, err := issuer.Verify(token, auth.KindPlatform)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			user, err := users.GetByID(claims.Subject)
			if err != nil || !user.IsActive || !user.IsPlatformAdmin {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "platform admin required",
					"code":  "authorization_error",
				})
				return
			}

			ctx := context.WithValue(r.Context(), auth.ContextKeyUserID, user.ID)
			ctx = context.WithValue(ctx, auth.ContextKeyIsPlatformAdmin, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  "authentication_error",
	})
}

// extractToken pulls the bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return ""
}
