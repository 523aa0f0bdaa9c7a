package service

import "errors"

// Sentinel errors returned by the services. Handlers map these onto HTTP
// status codes; anything not listed here is treated as an internal error.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidAccessToken   = errors.New("invalid access token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrPasswordReuse        = errors.New("new password must differ from the current one")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrLastAdminProtected   = errors.New("cannot remove the last admin")
)
