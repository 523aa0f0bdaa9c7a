// Package passwordx holds the password strength policy enforced everywhere a
// new password is accepted (registration, reset, change). Keeping it a pure
// function means every call site rejects exactly the same inputs.
package passwordx

import (
	"fmt"
	"strings"
	"unicode"
)

// MinLength is the minimum accepted password length.
const MinLength = 12

// Symbols is the punctuation set that satisfies the symbol requirement.
const Symbols = `!"#$%&'()*+,-./:;<=>?@[\]^_{|}~` + "`"

// denylist contains common passwords rejected regardless of composition,
// matched case-insensitively.
var denylist = map[string]struct{}{
	"password":     {},
	"123456":       {},
	"12345678":     {},
	"qwerty":       {},
	"admin":        {},
	"letmein":      {},
	"welcome":      {},
	"passwort":     {},
	"password1":    {},
	"iloveyou":     {},
	"sunshine":     {},
	"princess":     {},
	"dragon":       {},
	"monkey":       {},
	"master":       {},
	"football":     {},
	"baseball":     {},
	"abc123":       {},
	"111111":       {},
	"123456789":    {},
	"1234567890":   {},
	"password123":  {},
	"qwertyuiop":   {},
	"changeme":     {},
	"trustno1":     {},
	"superman":     {},
	"whatever":     {},
	"admin123":     {},
	"root":         {},
	"passw0rd":     {},
	"p@ssword":     {},
	"p@ssw0rd":     {},
	"letmein123":   {},
	"welcome123":   {},
	"password1234": {},
}

// PolicyError names the specific requirement a candidate password failed.
type PolicyError struct {
	Requirement string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password does not meet policy: %s", e.Requirement)
}

// Validate checks a candidate password against the policy and returns a
// *PolicyError describing the first missing requirement, or nil.
func Validate(password string) error {
	if len(password) < MinLength {
		return &PolicyError{Requirement: fmt.Sprintf("must be at least %d characters long", MinLength)}
	}

	if _, banned := denylist[strings.ToLower(password)]; banned {
		return &PolicyError{Requirement: "is too common"}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return &PolicyError{Requirement: "must contain an uppercase letter"}
	case !hasLower:
		return &PolicyError{Requirement: "must contain a lowercase letter"}
	case !hasDigit:
		return &PolicyError{Requirement: "must contain a digit"}
	case !hasSymbol:
		return &PolicyError{Requirement: "must contain a symbol"}
	}

	return nil
}
