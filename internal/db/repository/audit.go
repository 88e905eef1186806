package repository

import (
	"context"
	"database/sql"
	"strings"

	"circle-core/internal/domain"
)

var _ domain.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implements domain.AuditRepository using SQLite.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends an audit entry.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, circle_id, principal_key, action, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullString(e.CircleID), e.PrincipalKey, e.Action, e.Status, e.Detail, e.CreatedAt)
	return err
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	var conds []string
	var args []any
	if filter.CircleID != nil {
		conds = append(conds, "circle_id = ?")
		args = append(args, *filter.CircleID)
	}
	if filter.PrincipalKey != nil {
		conds = append(conds, "principal_key = ?")
		args = append(args, *filter.PrincipalKey)
	}
	if filter.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, *filter.Action)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, filter.Page.Limit(), filter.Page.Offset()) //nolint:gocritic
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, circle_id, principal_key, action, status, detail, created_at
		 FROM audit_log`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var circleID sql.NullString
		if err := rows.Scan(&e.ID, &circleID, &e.PrincipalKey, &e.Action, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.CircleID = stringPtr(circleID)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
