package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/voltplan/voltplan/internal/domain"
	"github.com/voltplan/voltplan/internal/store"

	"github.com/jmoiron/sqlx"
)

type usersRepo struct {
	db sqlx.ExtContext
}

type userRow struct {
	ID            string       `db:"id"`
	Username      string       `db:"username"`
	Email         string       `db:"email"`
	PasswordHash  string       `db:"password_hash"`
	Role          string       `db:"role"`
	Active        bool         `db:"active"`
	EmailVerified bool         `db:"email_verified"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
	LastLogin     sql.NullTime `db:"last_login"`
}

func (r userRow) toDomain() domain.User {
	u := domain.User{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		Role:          r.Role,
		Active:        r.Active,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time
		u.LastLogin = &t
	}
	return u
}

const userColumns = `id, username, email, password_hash, role, active, email_verified, created_at, updated_at, last_login`

func (r *usersRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, active, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Active, u.EmailVerified, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *usersRepo) List(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) RecordLogin(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) CountAdmins(ctx context.Context, excludeID string) (int, error) {
	var count int
	var err error
	if excludeID == "" {
		err = sqlx.GetContext(ctx, r.db, &count,
			`SELECT COUNT(*) FROM users WHERE role = ?`, domain.RoleAdmin)
	} else {
		err = sqlx.GetContext(ctx, r.db, &count,
			`SELECT COUNT(*) FROM users WHERE role = ? AND id != ?`, domain.RoleAdmin, excludeID)
	}
	return count, err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return false, err
	}
	return count == 0, nil
}

// requireAffected maps zero-affected-rows to ErrNotFound so update and delete
// statements surface missing rows instead of silently succeeding.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
