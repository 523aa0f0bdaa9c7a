package passwordx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsStrongPasswords(t *testing.T) {
	t.Parallel()

	for _, pw := range []string{
		"Secur3!Password12",
		"Admin123!Secure",
		"correct-Horse-7battery",
	} {
		require.NoError(t, Validate(pw), "password: %q", pw)
	}
}

func TestValidateRejectsEachMissingRequirement(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		password string
		want     string
	}{
		{"too short", "Ab1!x", "at least 12 characters"},
		{"no uppercase", "secur3!password12", "uppercase"},
		{"no lowercase", "SECUR3!PASSWORD12", "lowercase"},
		{"no digit", "Secure!PasswordX", "digit"},
		{"no symbol", "Secur3Password12", "symbol"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.password)
			require.Error(t, err)

			var perr *PolicyError
			require.ErrorAs(t, err, &perr)
			require.Contains(t, perr.Requirement, tc.want)
		})
	}
}

func TestValidateRejectsDenylistCaseInsensitively(t *testing.T) {
	t.Parallel()

	for _, pw := range []string{"password1234", "PASSWORD1234", "PaSsWoRd1234"} {
		err := Validate(pw)
		require.Error(t, err, "password: %q", pw)

		var perr *PolicyError
		require.ErrorAs(t, err, &perr)
		require.Contains(t, perr.Requirement, "too common")
	}
}
