package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators carried in the "type" claim. A refresh token can
// never be presented where an access token is expected and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token TTLs. Short-lived access tokens, week-long refresh tokens.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the signed token claims. The subject is the user's id.
// TokenType distinguishes access from refresh tokens; the registered
// ID (jti) is only set on refresh tokens so that rapid rotations for the same
// subject still produce unique token strings.
type Claims struct {
	jwt.RegisteredClaims

	TokenType string `json:"type"`
}

func newClaims(subject, tokenType string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}
}
