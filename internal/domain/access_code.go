package domain

import "time"

// Access code purposes. A code is only redeemable by the operation whose
// purpose it was minted for.
const (
	PurposeRegistration  = "registration"
	PurposePasswordReset = "password_reset"
)

// Code lifetimes per purpose.
const (
	RegistrationCodeTTL  = 24 * time.Hour
	PasswordResetCodeTTL = time.Hour
)

// AccessCode is a single-use, purpose-scoped, expiring capability used for
// invite-registration and password reset. Redeemable only while used=false,
// unexpired, and the purpose matches. UserID is empty for registration codes
// minted before the user exists.
type AccessCode struct {
	ID        string
	Code      string
	Purpose   string
	ExpiresAt time.Time
	Used      bool
	UserID    string
	CreatedAt time.Time
}
