package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/jwtx"
	"github.com/voltplan/voltplan/pkg/passwordx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, got, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// Last login is stamped.
	refreshed, err := env.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, refreshed.LastLogin)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	_, _, unknownErr := env.auth.Login(ctx, "nobody@example.com", testPassword, RequestMeta{})
	_, _, wrongErr := env.auth.Login(ctx, u.Email, "Wrong!Password99", RequestMeta{})

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr, wrongErr)
}

func TestLoginInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.createUser(t, domain.RoleUser)
	inactive := u
	inactive.ID = idx.New().String()
	inactive.Username = "inactive-" + idx.New().String()
	inactive.Email = idx.New().String() + "@example.com"
	inactive.Active = false
	require.NoError(t, env.store.Users().Create(ctx, inactive))

	_, _, err := env.auth.Login(ctx, inactive.Email, testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	next, err := env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The consumed token is dead.
	_, err = env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The replacement works.
	_, err = env.auth.Refresh(ctx, next.RefreshToken, RequestMeta{})
	assert.NoError(t, err)
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRefreshGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Refresh(context.Background(), "not-a-jwt", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRevokedExpiredTokenIsInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	// Expired claims, but no stored row: revocation wins over expiry.
	issuer := &jwtx.Issuer{Secret: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: -time.Minute}
	token, _, err := issuer.SignRefresh(u.ID)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, token, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshExpiredTokenIsConsumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	issuer := &jwtx.Issuer{Secret: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: -time.Minute}
	token, expiresAt, err := issuer.SignRefresh(u.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.RefreshTokens().Create(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: expiresAt,
	}))

	_, err = env.auth.Refresh(ctx, token, RequestMeta{})
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	// Redemption reaped the expired row.
	_, err = env.store.RefreshTokens().GetByToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, pair.RefreshToken, RequestMeta{}))
	require.NoError(t, env.auth.Logout(ctx, pair.RefreshToken, RequestMeta{}))

	// The session is gone.
	_, err = env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestResolveAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	got, err := env.auth.ResolveAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// A refresh token is not an access token.
	_, err = env.auth.ResolveAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	// A deleted user's token stops resolving.
	require.NoError(t, env.store.Users().Delete(ctx, u.ID))
	_, err = env.auth.ResolveAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	const newPassword = "Brand!NewSecret7"
	require.NoError(t, env.auth.ChangePassword(ctx, u.ID, testPassword, newPassword, RequestMeta{}))

	// All sessions are revoked.
	_, err = env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Old password no longer works, the new one does.
	_, _, err = env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.auth.Login(ctx, u.Email, newPassword, RequestMeta{})
	assert.NoError(t, err)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, domain.RoleUser)

	err := env.auth.ChangePassword(context.Background(), u.ID, "Wrong!Current99x", "Brand!NewSecret7", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePasswordPolicyViolation(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, domain.RoleUser)

	err := env.auth.ChangePassword(context.Background(), u.ID, testPassword, "short", RequestMeta{})

	var policyErr *passwordx.PolicyError
	assert.ErrorAs(t, err, &policyErr)
}

func TestChangePasswordReuse(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, domain.RoleUser)

	err := env.auth.ChangePassword(context.Background(), u.ID, testPassword, testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrPasswordReuse)
}
