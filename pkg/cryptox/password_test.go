package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyPassword("correct horse battery staple", hash))
	require.Error(t, VerifyPassword("wrong password", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("same input")
	require.NoError(t, err)
	h2, err := HashPassword("same input")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!$aGFzaA",
	}
	for _, c := range cases {
		require.Error(t, VerifyPassword("pw", c), "hash: %q", c)
	}
}

func TestPepperChangesHash(t *testing.T) {
	SetPepper("")
	plain, err := HashPassword("pw")
	require.NoError(t, err)

	SetPepper("extra-secret")
	t.Cleanup(func() { SetPepper("") })

	require.Error(t, VerifyPassword("pw", plain))

	peppered, err := HashPassword("pw")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword("pw", peppered))
}
