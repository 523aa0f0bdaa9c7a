package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/voltplan/voltplan/internal/domain"

	"github.com/jmoiron/sqlx"
)

type auditLogsRepo struct {
	db sqlx.ExtContext
}

type auditLogRow struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Action    string         `db:"action"`
	IP        string         `db:"ip"`
	UserAgent string         `db:"user_agent"`
	Success   bool           `db:"success"`
	Details   sql.NullString `db:"details"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r auditLogRow) toDomain() (domain.AuditEntry, error) {
	e := domain.AuditEntry{
		ID:        r.ID,
		UserID:    r.UserID.String,
		Action:    r.Action,
		IP:        r.IP,
		UserAgent: r.UserAgent,
		Success:   r.Success,
		CreatedAt: r.CreatedAt,
	}
	if r.Details.Valid && r.Details.String != "" {
		if err := json.Unmarshal([]byte(r.Details.String), &e.Details); err != nil {
			return domain.AuditEntry{}, err
		}
	}
	return e, nil
}

func (r *auditLogsRepo) Insert(ctx context.Context, e domain.AuditEntry) error {
	var details sql.NullString
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = sql.NullString{String: string(raw), Valid: true}
	}

	userID := sql.NullString{String: e.UserID, Valid: e.UserID != ""}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, ip, user_agent, success, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, userID, e.Action, e.IP, e.UserAgent, e.Success, details, time.Now().UTC())
	return err
}

func (r *auditLogsRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	var rows []auditLogRow
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT id, user_id, action, ip, user_agent, success, details, created_at
		 FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
