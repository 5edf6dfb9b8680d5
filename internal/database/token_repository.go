package database

import (
	"database/sql"
	"fmt"
	"time"
)

// TokenRepository tracks revoked refresh tokens by their token ID (jti).
// Rows past their natural expiry can be purged; a token absent from the
// table and not expired is still good.
type TokenRepository struct {
	conn *sql.DB
}

// NewTokenRepository creates a token revocation repository.
func NewTokenRepository(conn *sql.DB) *TokenRepository {
	return &TokenRepository{conn: conn}
}

// Revoke blacklists a refresh token until its natural expiry.
func (r *TokenRepository) Revoke(jti string, expiresAt time.Time) error {
	_, err := r.conn.Exec(`INSERT INTO revoked_tokens (jti, revoked_at, expires_at)
		VALUES (?, ?, ?) ON CONFLICT (jti) DO NOTHING`, jti, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token ID has been blacklisted.
func (r *TokenRepository) IsRevoked(jti string) (bool, error) {
	var n int
	if err := r.conn.QueryRow(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n); err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired drops revocation rows whose tokens have expired anyway.
func (r *TokenRepository) PurgeExpired() (int64, error) {
	res, err := r.conn.Exec(`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
