package repository

import (
	"context"
	"database/sql"
	"fmt"

	"circle-core/internal/domain"
)

var _ domain.CircleRepository = (*CircleRepo)(nil)

// CircleRepo implements domain.CircleRepository using SQLite.
type CircleRepo struct {
	db *sql.DB
}

// NewCircleRepo creates a new CircleRepo over the write pool.
func NewCircleRepo(db *sql.DB) *CircleRepo {
	return &CircleRepo{db: db}
}

// CreateWithOwner inserts the circle, its owner role, and the owner
// membership in one transaction.
func (r *CircleRepo) CreateWithOwner(ctx context.Context, c *domain.Circle, ownerRole *domain.Role, ownerMembership *domain.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create circle tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO circles (id, name, slug, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.Status, c.CreatedAt,
	); err != nil {
		return mapDBError(err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO roles (id, circle_id, name, level, scopes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ownerRole.ID, ownerRole.CircleID, ownerRole.Name, ownerRole.Level,
		joinScopes(ownerRole.Scopes), ownerRole.CreatedAt,
	); err != nil {
		return mapDBError(err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (id, circle_id, principal_key, role_id, is_active, joined_at) VALUES (?, ?, ?, ?, 1, ?)`,
		ownerMembership.ID, ownerMembership.CircleID, ownerMembership.Principal.Key(),
		ownerMembership.RoleID, ownerMembership.JoinedAt,
	); err != nil {
		return mapDBError(err)
	}

	return tx.Commit()
}

const circleColumns = `id, name, slug, status, created_at`

func scanCircle(row *sql.Row) (*domain.Circle, error) {
	var c domain.Circle
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Status, &c.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return &c, nil
}

// GetByID returns the circle with the given ID.
func (r *CircleRepo) GetByID(ctx context.Context, id string) (*domain.Circle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+circleColumns+` FROM circles WHERE id = ?`, id)
	return scanCircle(row)
}

// GetBySlug returns the circle with the given slug.
func (r *CircleRepo) GetBySlug(ctx context.Context, slug string) (*domain.Circle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+circleColumns+` FROM circles WHERE slug = ?`, slug)
	return scanCircle(row)
}

// List returns a page of circles in creation order.
func (r *CircleRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Circle, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM circles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+circleColumns+` FROM circles ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Circle
	for rows.Next() {
		var c domain.Circle
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Status, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Archive transitions the circle to archived, conditional on it still being
// active. Rows, roles, memberships, and delegations all stay in place as
// frozen history.
func (r *CircleRepo) Archive(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE circles SET status = ? WHERE id = ? AND status = ?`,
		domain.CircleArchived, id, domain.CircleActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Zero rows: distinguish missing from already-terminal.
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return domain.ErrConflict("circle %q is already %s", c.Slug, c.Status)
}
