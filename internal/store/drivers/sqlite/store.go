// Package sqlite implements the store interfaces on an embedded SQLite
// database via the pure-Go modernc driver.
package sqlite

import (
	"context"
	"fmt"

	"github.com/voltplan/voltplan/internal/store"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Store struct {
	db *sqlx.DB

	users         *usersRepo
	refreshTokens *refreshTokensRepo
	accessCodes   *accessCodesRepo
	auditLogs     *auditLogsRepo
}

var _ store.Store = (*Store)(nil)

// NewStore opens (creating if necessary) the SQLite database at path.
//
// The modernc driver takes pragmas as _pragma query parameters; the
// mattn-style _busy_timeout form is silently ignored, so don't use it.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Store{
		db:            db,
		users:         &usersRepo{db: db},
		refreshTokens: &refreshTokensRepo{db: db},
		accessCodes:   &accessCodesRepo{db: db},
		auditLogs:     &auditLogsRepo{db: db},
	}, nil
}

func (s *Store) Users() store.Users                 { return s.users }
func (s *Store) RefreshTokens() store.RefreshTokens { return s.refreshTokens }
func (s *Store) AccessCodes() store.AccessCodes     { return s.accessCodes }
func (s *Store) AuditLogs() store.AuditLogs         { return s.auditLogs }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&storeTx{tx: txx}); err != nil {
		if rbErr := txx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := txx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
