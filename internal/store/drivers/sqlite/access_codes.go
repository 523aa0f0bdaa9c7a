package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"

	"github.com/jmoiron/sqlx"
)

type accessCodesRepo struct {
	db sqlx.ExtContext
}

type accessCodeRow struct {
	ID        string         `db:"id"`
	Code      string         `db:"code"`
	Purpose   string         `db:"purpose"`
	ExpiresAt time.Time      `db:"expires_at"`
	Used      bool           `db:"used"`
	UserID    sql.NullString `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r accessCodeRow) toDomain() domain.AccessCode {
	return domain.AccessCode{
		ID:        r.ID,
		Code:      r.Code,
		Purpose:   r.Purpose,
		ExpiresAt: r.ExpiresAt,
		Used:      r.Used,
		UserID:    r.UserID.String,
		CreatedAt: r.CreatedAt,
	}
}

func (r *accessCodesRepo) Create(ctx context.Context, c domain.AccessCode) error {
	userID := sql.NullString{String: c.UserID, Valid: c.UserID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_codes (id, code, purpose, expires_at, used, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.Purpose, c.ExpiresAt.UTC(), c.Used, userID, time.Now().UTC())
	return err
}

func (r *accessCodesRepo) GetActive(ctx context.Context, code, purpose string) (domain.AccessCode, error) {
	var row accessCodeRow
	err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT id, code, purpose, expires_at, used, user_id, created_at
		 FROM access_codes
		 WHERE code = ? AND purpose = ? AND used = 0 AND expires_at > ?`,
		code, purpose, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AccessCode{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AccessCode{}, err
	}
	return row.toDomain(), nil
}

// MarkUsed flips used guarded by used = 0, so only one of any number of
// concurrent redeemers succeeds.
func (r *accessCodesRepo) MarkUsed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_codes SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accessCodesRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_codes WHERE used = 1 OR expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
