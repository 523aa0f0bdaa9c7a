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

type refreshTokensRepo struct {
	db sqlx.ExtContext
}

type refreshTokenRow struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r refreshTokenRow) toDomain() domain.RefreshToken {
	return domain.RefreshToken{
		ID:        r.ID,
		Token:     r.Token,
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, token, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Token, t.UserID, t.ExpiresAt.UTC(), time.Now().UTC())
	return err
}

func (r *refreshTokensRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	var row refreshTokenRow
	err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT id, token, user_id, expires_at, created_at
		 FROM refresh_tokens WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return row.toDomain(), nil
}

// Consume deletes the row for the given token. Exactly one of any number of
// concurrent callers sees a non-zero affected count; the rest get ErrNotFound.
func (r *refreshTokensRepo) Consume(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *refreshTokensRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
