package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/passwordx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteAndCompleteRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	// The invite mail carries the code.
	msgs := env.mail.waitForMessages(t, 1)
	assert.Equal(t, "new@example.com", msgs[0].To)
	assert.Contains(t, msgs[0].Body, code)

	user, err := env.account.CompleteRegistration(ctx, code, "newbie", "new@example.com", testPassword, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.Active)

	// The fresh account can log in.
	_, _, err = env.auth.Login(ctx, "new@example.com", testPassword, RequestMeta{})
	assert.NoError(t, err)
}

func TestInviteExistingEmail(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, domain.RoleUser)

	_, err := env.account.Invite(context.Background(), u.Email, RequestMeta{})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestCompleteRegistrationCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)

	_, err = env.account.CompleteRegistration(ctx, code, "first", "new@example.com", testPassword, RequestMeta{})
	require.NoError(t, err)

	_, err = env.account.CompleteRegistration(ctx, code, "second", "other@example.com", testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestCompleteRegistrationBadCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.account.CompleteRegistration(context.Background(), "no-such-code", "x", "x@example.com", testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestCompleteRegistrationExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expired := domain.AccessCode{
		ID:        idx.New().String(),
		Code:      "expired-code",
		Purpose:   domain.PurposeRegistration,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, env.store.AccessCodes().Create(ctx, expired))

	_, err := env.account.CompleteRegistration(ctx, expired.Code, "x", "x@example.com", testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestCompleteRegistrationDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	code, err := env.account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)

	_, err = env.account.CompleteRegistration(ctx, code, u.Username, "new@example.com", testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrUsernameAlreadyTaken)
}

func TestCompleteRegistrationWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)

	_, err = env.account.CompleteRegistration(ctx, code, "newbie", "new@example.com", "weak", RequestMeta{})

	var policyErr *passwordx.PolicyError
	require.ErrorAs(t, err, &policyErr)

	// A rejected password does not burn the code.
	_, err = env.account.CompleteRegistration(ctx, code, "newbie", "new@example.com", testPassword, RequestMeta{})
	assert.NoError(t, err)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)

	err := env.account.ForgotPassword(context.Background(), "nobody@example.com", RequestMeta{})
	assert.NoError(t, err)
	assert.Empty(t, env.mail.messages())
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	pair, _, err := env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, env.account.ForgotPassword(ctx, u.Email, RequestMeta{}))

	code := extractResetCode(t, env)

	const newPassword = "Reset!Secret123"
	require.NoError(t, env.account.ResetPassword(ctx, u.Email, code, newPassword, RequestMeta{}))

	// Sessions are revoked and only the new password works.
	_, err = env.auth.Refresh(ctx, pair.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = env.auth.Login(ctx, u.Email, testPassword, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = env.auth.Login(ctx, u.Email, newPassword, RequestMeta{})
	assert.NoError(t, err)

	// The code is single use.
	err = env.account.ResetPassword(ctx, u.Email, code, "Another!Pass456", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestResetPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	err := env.account.ResetPassword(context.Background(), "nobody@example.com", "whatever", "Reset!Secret123", RequestMeta{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPasswordCodeBoundToOtherUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, domain.RoleUser)
	other := env.createUser(t, domain.RoleUser)

	require.NoError(t, env.account.ForgotPassword(ctx, owner.Email, RequestMeta{}))
	code := extractResetCode(t, env)

	// The code only works for the account it was minted for.
	err := env.account.ResetPassword(ctx, other.Email, code, "Reset!Secret123", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	require.NoError(t, env.account.ResetPassword(ctx, owner.Email, code, "Reset!Secret123", RequestMeta{}))
}

func TestResetPasswordRegistrationCodeRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, domain.RoleUser)

	code, err := env.account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)

	err = env.account.ResetPassword(ctx, u.Email, code, "Reset!Secret123", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

// slowMailer stalls every delivery until the context gives up or the delay
// elapses.
type slowMailer struct {
	delay time.Duration
}

func (m *slowMailer) Send(ctx context.Context, _, _, _ string) error {
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestMailDeliveryDoesNotBlockRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	account := NewAccountService(env.store, &slowMailer{delay: 2 * time.Second}, env.audit, log)
	u := env.createUser(t, domain.RoleUser)

	start := time.Now()
	_, err := account.Invite(ctx, "new@example.com", RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, account.ForgotPassword(ctx, u.Email, RequestMeta{}))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// extractResetCode pulls the reset code from the last mail sent.
func extractResetCode(t *testing.T, env *testEnv) string {
	t.Helper()

	msgs := env.mail.waitForMessages(t, 1)
	body := msgs[len(msgs)-1].Body
	for i := len(body) - 1; i >= 0; i-- {
		if body[i] == ' ' {
			return body[i+1:]
		}
	}
	t.Fatal("no code found in mail body")
	return ""
}
