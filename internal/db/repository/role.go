package repository

import (
	"context"
	"database/sql"

	"circle-core/internal/domain"
)

var _ domain.RoleRepository = (*RoleRepo)(nil)

// RoleRepo implements domain.RoleRepository using SQLite.
type RoleRepo struct {
	db *sql.DB
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

// Create inserts a new role. The INSERT re-checks the circle's status so a
// concurrent Archive cannot land a role in a frozen circle; zero rows means
// the circle stopped being active after the service validated it.
func (r *RoleRepo) Create(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, circle_id, name, level, scopes, created_at)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM circles WHERE id = ? AND status = ?)`,
		role.ID, role.CircleID, role.Name, role.Level, joinScopes(role.Scopes), role.CreatedAt,
		role.CircleID, domain.CircleActive,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrConflict("circle %q is not active", role.CircleID)
	}
	return role, nil
}

const roleColumns = `id, circle_id, name, level, scopes, created_at`

// GetByID returns the role with the given ID.
func (r *RoleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)

	var role domain.Role
	var scopes string
	if err := row.Scan(&role.ID, &role.CircleID, &role.Name, &role.Level, &scopes, &role.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	role.Scopes = splitScopes(scopes)
	return &role, nil
}

// ListForCircle returns all roles in the circle, owner first.
func (r *RoleRepo) ListForCircle(ctx context.Context, circleID string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE circle_id = ?
		 ORDER BY CASE level WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, created_at`,
		circleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		var scopes string
		if err := rows.Scan(&role.ID, &role.CircleID, &role.Name, &role.Level, &scopes, &role.CreatedAt); err != nil {
			return nil, err
		}
		role.Scopes = splitScopes(scopes)
		out = append(out, role)
	}
	return out, rows.Err()
}

// UpdateScopes replaces the role's scope set. The predicate excludes
// owner-level roles so the owner role can never shrink, even under races.
func (r *RoleRepo) UpdateScopes(ctx context.Context, roleID string, scopes []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET scopes = ? WHERE id = ? AND level != ?`,
		joinScopes(scopes), roleID, domain.LevelOwner)
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

	// Zero rows: either the role is missing or it is the owner role.
	if _, err := r.GetByID(ctx, roleID); err != nil {
		return err
	}
	return domain.ErrOwnerRoleImmutable()
}
