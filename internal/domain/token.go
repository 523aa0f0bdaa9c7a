package domain

import "time"

// TokenPair is what a successful login or refresh returns: a short-lived
// access JWT and the single-use refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "bearer"
}

// RefreshToken models one active session. The row is keyed by the full signed
// token string; the token's jti claim guarantees uniqueness across rapid
// rotations. Consumed (deleted) on refresh, logout, expiry sweep, or when the
// owning user is deleted.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
