package store

import (
	"context"
	"errors"

	"github.com/voltplan/voltplan/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	AccessCodes() AccessCodes
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. All multi-step
	// mutations that must be atomic (refresh rotation, code redemption,
	// password change + session revocation) go through here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying database handle.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view over the same repositories.
type Tx interface {
	Users() Users
	RefreshTokens() RefreshTokens
	AccessCodes() AccessCodes
	AuditLogs() AuditLogs
}

type Users interface {
	// GetByID returns a user by id.
	GetByID(ctx context.Context, id string) (domain.User, error)

	// GetByEmail returns a user by exact email match (login identity).
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// GetByUsername returns a user by username.
	GetByUsername(ctx context.Context, username string) (domain.User, error)

	// Create inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email or username is taken.
	Create(ctx context.Context, u domain.User) error

	// List returns all users ordered by creation date.
	List(ctx context.Context) ([]domain.User, error)

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateRole sets the role and bumps updated_at.
	UpdateRole(ctx context.Context, userID, role string) error

	// RecordLogin stamps last_login with the current time.
	RecordLogin(ctx context.Context, userID string) error

	// Delete removes a user; refresh tokens cascade per schema.
	Delete(ctx context.Context, userID string) error

	// CountAdmins returns the number of admin-role users, excluding
	// excludeID when non-empty. Drives the last-admin invariant.
	CountAdmins(ctx context.Context, excludeID string) (int, error)

	// IsEmpty reports whether the users table has no rows (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

type RefreshTokens interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, t domain.RefreshToken) error

	// GetByToken returns the row matching the exact token string.
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)

	// Consume deletes the row matching the token. Returns ErrNotFound when
	// no row was deleted, which is what makes concurrent rotation of the
	// same token a single-winner race.
	Consume(ctx context.Context, token string) error

	// DeleteAllForUser removes every session for a user in one statement
	// (password change, admin reset).
	DeleteAllForUser(ctx context.Context, userID string) error

	// DeleteExpired reaps rows past their expiry, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

type AccessCodes interface {
	// Create stores a freshly minted code.
	Create(ctx context.Context, c domain.AccessCode) error

	// GetActive returns an unused, unexpired code matching code + purpose.
	GetActive(ctx context.Context, code, purpose string) (domain.AccessCode, error)

	// MarkUsed flips used=true guarded by used=false. Returns ErrNotFound
	// when the code was already consumed, making concurrent redemption a
	// single-winner race.
	MarkUsed(ctx context.Context, id string) error

	// DeleteExpired reaps expired and used codes, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

type AuditLogs interface {
	// Insert appends one audit entry. The audit log is append-only.
	Insert(ctx context.Context, e domain.AuditEntry) error

	// ListRecent returns the newest entries up to limit.
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
