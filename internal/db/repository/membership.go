package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"circle-core/internal/domain"
)

var _ domain.MembershipRepository = (*MembershipRepo)(nil)

// MembershipRepo implements domain.MembershipRepository using SQLite.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo creates a new MembershipRepo.
func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Add inserts a new membership. The partial unique index on active rows
// turns a duplicate active principal into a ConflictError. The circle-status
// guard lives inside the INSERT so an Archive committing after the service's
// read cannot slip a new member into a frozen circle.
func (r *MembershipRepo) Add(ctx context.Context, m *domain.Membership) (*domain.Membership, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, circle_id, principal_key, role_id, is_active, joined_at)
		 SELECT ?, ?, ?, ?, 1, ?
		 WHERE EXISTS (SELECT 1 FROM circles WHERE id = ? AND status = ?)`,
		m.ID, m.CircleID, m.Principal.Key(), m.RoleID, m.JoinedAt,
		m.CircleID, domain.CircleActive,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrConflict("circle %q is not active", m.CircleID)
	}
	return m, nil
}

const membershipColumns = `id, circle_id, principal_key, role_id, is_active, joined_at`

func scanMembership(scan func(dest ...any) error) (*domain.Membership, error) {
	var m domain.Membership
	var key string
	var active int
	if err := scan(&m.ID, &m.CircleID, &key, &m.RoleID, &active, &m.JoinedAt); err != nil {
		return nil, mapDBError(err)
	}
	p, err := domain.ParsePrincipal(key)
	if err != nil {
		return nil, err
	}
	m.Principal = p
	m.IsActive = active == 1
	return &m, nil
}

// GetByID returns the membership with the given ID, active or not.
func (r *MembershipRepo) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = ?`, id)
	return scanMembership(row.Scan)
}

// GetActiveByPrincipal returns the principal's single active membership in
// the circle.
func (r *MembershipRepo) GetActiveByPrincipal(ctx context.Context, circleID string, p domain.Principal) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE circle_id = ? AND principal_key = ? AND is_active = 1`,
		circleID, p.Key())
	return scanMembership(row.Scan)
}

// GetOwner returns the circle's owner membership.
func (r *MembershipRepo) GetOwner(ctx context.Context, circleID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT m.id, m.circle_id, m.principal_key, m.role_id, m.is_active, m.joined_at
		 FROM memberships m JOIN roles r ON m.role_id = r.id
		 WHERE m.circle_id = ? AND r.level = ? AND m.is_active = 1`,
		circleID, domain.LevelOwner)
	return scanMembership(row.Scan)
}

// ListForCircle returns a page of the circle's memberships, including
// deactivated history rows, oldest first.
func (r *MembershipRepo) ListForCircle(ctx context.Context, circleID string, page domain.PageRequest) ([]domain.Membership, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE circle_id = ?`, circleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE circle_id = ? ORDER BY joined_at, id LIMIT ? OFFSET ?`,
		circleID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// SetRole reassigns the membership's role after re-validating every
// invariant against committed state inside the transaction. Concurrent role
// changes on the same membership serialize on the single-writer pool;
// whichever commits last wins.
func (r *MembershipRepo) SetRole(ctx context.Context, membershipID, newRoleID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set role tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var circleID, currentLevel string
	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT m.circle_id, m.is_active, r.level
		 FROM memberships m JOIN roles r ON m.role_id = r.id
		 WHERE m.id = ?`, membershipID,
	).Scan(&circleID, &active, &currentLevel)
	if err != nil {
		return mapDBError(err)
	}
	if active != 1 {
		return domain.ErrConflict("membership is no longer active")
	}
	if currentLevel == domain.LevelOwner {
		return domain.ErrOwnerRoleImmutable()
	}

	var newCircleID, newLevel string
	err = tx.QueryRowContext(ctx,
		`SELECT circle_id, level FROM roles WHERE id = ?`, newRoleID,
	).Scan(&newCircleID, &newLevel)
	if err != nil {
		return mapDBError(err)
	}
	if newCircleID != circleID {
		return domain.ErrValidation("role belongs to a different circle")
	}
	if newLevel == domain.LevelOwner {
		return domain.ErrOwnerRoleImmutable()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE memberships SET role_id = ? WHERE id = ?`, newRoleID, membershipID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeactivateCascade marks the membership inactive and revokes every active
// delegation it issued, in one transaction. Delegation rows are kept as
// terminal history.
func (r *MembershipRepo) DeactivateCascade(ctx context.Context, membershipID, revokedBy string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE memberships SET is_active = 0 WHERE id = ? AND is_active = 1`,
		membershipID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memberships WHERE id = ?`, membershipID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound("membership %q not found", membershipID)
		}
		return domain.ErrConflict("membership is already inactive")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE delegations SET status = ?, revoked_at = ?, revoked_by = ?
		 WHERE delegator_membership_id = ? AND status = ?`,
		domain.DelegationRevoked, at, revokedBy, membershipID, domain.DelegationActive,
	); err != nil {
		return err
	}
	return tx.Commit()
}
