package sqlite

import (
	"github.com/voltplan/voltplan/internal/store"

	"github.com/jmoiron/sqlx"
)

// storeTx exposes the same repositories bound to one transaction. The repos
// only depend on sqlx.ExtContext, which both *sqlx.DB and *sqlx.Tx satisfy.
type storeTx struct {
	tx *sqlx.Tx
}

var _ store.Tx = (*storeTx)(nil)

func (t *storeTx) Users() store.Users                 { return &usersRepo{db: t.tx} }
func (t *storeTx) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: t.tx} }
func (t *storeTx) AccessCodes() store.AccessCodes     { return &accessCodesRepo{db: t.tx} }
func (t *storeTx) AuditLogs() store.AuditLogs         { return &auditLogsRepo{db: t.tx} }
