package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"
	"github.com/voltplan/voltplan/internal/store/drivers/sqlite"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

const testPassword = "Sufficient!Pass9"

type testEnv struct {
	store   store.Store
	auth    *AuthService
	account *AccountService
	users   *UserService
	audit   *AuditService
	mail    *fakeMailer
}

// fakeMailer records deliveries. Sends arrive from background goroutines,
// so access is synchronized and tests wait via waitForMessages.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// waitForMessages blocks until at least n mails have been delivered.
func (m *fakeMailer) waitForMessages(t *testing.T, n int) []sentMail {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(m.messages()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return m.messages()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := jwtx.NewIssuer([]byte("test-secret"), 0, 0)
	audit := NewAuditService(st, log)
	mail := &fakeMailer{}

	return &testEnv{
		store:   st,
		auth:    NewAuthService(st, issuer, audit, log),
		account: NewAccountService(st, mail, audit, log),
		users:   NewUserService(st, audit, log),
		audit:   audit,
		mail:    mail,
	}
}

// createUser inserts a user with the given role whose password is
// testPassword.
func (e *testEnv) createUser(t *testing.T, role string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     "user-" + idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// seedExpiredSession inserts a refresh token row that is already past expiry.
func seedExpiredSession(t *testing.T, e *testEnv, userID string) {
	t.Helper()

	err := e.store.RefreshTokens().Create(context.Background(), domain.RefreshToken{
		ID:        idx.New().String(),
		Token:     "expired-" + idx.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
}
