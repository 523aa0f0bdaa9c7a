package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired reports a structurally valid token whose expiry has passed.
	ErrExpired = errors.New("jwtx: token expired")
	// ErrInvalid covers every other verification failure: bad signature,
	// malformed structure, wrong algorithm, or token-type mismatch.
	ErrInvalid = errors.New("jwtx: invalid token")
)

// Issuer mints and verifies HS256-signed access and refresh tokens. It is the
// only component that holds the signing secret. Stateless: persistence of
// refresh tokens is the caller's concern.
type Issuer struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewIssuer builds an Issuer, falling back to the default TTLs when the
// provided values are zero.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &Issuer{Secret: secret, AccessTTL: accessTTL, RefreshTTL: refreshTTL}
}

// SignAccess mints a short-lived access token for the subject.
func (i *Issuer) SignAccess(subject string) (string, error) {
	claims := newClaims(subject, TokenTypeAccess, i.AccessTTL, time.Now().UTC())
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
}

// SignRefresh mints a refresh token for the subject and returns the token
// string together with its expiry, which the caller persists alongside it.
// A random jti keeps token strings unique across rapid rotations.
func (i *Issuer) SignRefresh(subject string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	claims := newClaims(subject, TokenTypeRefresh, i.RefreshTTL, now)
	claims.ID = uuid.NewString()

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify parses and validates a token, enforcing the HS256 algorithm, the
// signature, expiry, and the expected token type. It returns ErrExpired for
// a token whose only defect is age and ErrInvalid for everything else.
func (i *Issuer) Verify(token, expectedType string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return i.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}

	if claims.TokenType != expectedType {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
