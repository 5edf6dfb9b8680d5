package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind tags each issued token with its single permitted purpose.
// Verification rejects tokens presented to an endpoint expecting a different
// kind, so a claim token can never be replayed as a session token.
type TokenKind string

const (
	KindSession  TokenKind = "session"
	KindRefresh  TokenKind = "refresh"
	KindClaim    TokenKind = "claim"
	KindPlatform TokenKind = "platform"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrWrongTokenKind = errors.New("token kind mismatch")
)

const issuerName = "exportdesk"

// Claims is the payload carried by every signed token.
type Claims struct {
	Kind  TokenKind `json:"kind"`
	Email string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HMAC-SHA256 signed tokens. All token kinds share
// one signing mechanism and secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates a token issuer keyed by the given secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue mints a token of the given kind for the subject user ID.
func (i *Issuer) Issue(subject, email string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind:  kind,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, requiring the expected kind.
func (i *Issuer) Verify(tokenStr string, expected TokenKind) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuerName))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != expected {
		return nil, ErrWrongTokenKind
	}
	return &claims, nil
}
