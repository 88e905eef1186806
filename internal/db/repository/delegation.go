package repository

import (
	"context"
	"database/sql"
	"time"

	"circle-core/internal/domain"
)

var _ domain.DelegationRepository = (*DelegationRepo)(nil)

// DelegationRepo implements domain.DelegationRepository using SQLite.
type DelegationRepo struct {
	db *sql.DB
}

// NewDelegationRepo creates a new DelegationRepo.
func NewDelegationRepo(db *sql.DB) *DelegationRepo {
	return &DelegationRepo{db: db}
}

// Create inserts a new delegation, conditional on the circle still being
// active and the delegator membership still active. Both guards ride inside
// the INSERT: a concurrent Archive or member removal landing after the
// service's reads turns this into a zero-row no-op instead of a grant into
// frozen state.
func (r *DelegationRepo) Create(ctx context.Context, d *domain.Delegation) (*domain.Delegation, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO delegations
		 (id, circle_id, delegator_membership_id, delegatee_key, scopes, status, expires_at, created_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM circles WHERE id = ? AND status = ?)
		   AND EXISTS (SELECT 1 FROM memberships WHERE id = ? AND is_active = 1)`,
		d.ID, d.CircleID, d.DelegatorMembershipID, d.Delegatee.Key(),
		joinScopes(d.Scopes), d.Status, nullTime(d.ExpiresAt), d.CreatedAt,
		d.CircleID, domain.CircleActive, d.DelegatorMembershipID,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrConflict("circle %q is not active or delegator is no longer a member", d.CircleID)
	}
	return d, nil
}

const delegationColumns = `id, circle_id, delegator_membership_id, delegatee_key,
	scopes, status, expires_at, created_at, revoked_at, revoked_by`

func scanDelegation(scan func(dest ...any) error) (*domain.Delegation, error) {
	var d domain.Delegation
	var key, scopes, status string
	var expiresAt, revokedAt sql.NullTime
	var revokedBy sql.NullString
	if err := scan(&d.ID, &d.CircleID, &d.DelegatorMembershipID, &key,
		&scopes, &status, &expiresAt, &d.CreatedAt, &revokedAt, &revokedBy); err != nil {
		return nil, mapDBError(err)
	}
	p, err := domain.ParsePrincipal(key)
	if err != nil {
		return nil, err
	}
	d.Delegatee = p
	d.Scopes = splitScopes(scopes)
	d.Status = domain.DelegationStatus(status)
	d.ExpiresAt = timePtr(expiresAt)
	d.RevokedAt = timePtr(revokedAt)
	d.RevokedBy = stringPtr(revokedBy)
	return &d, nil
}

// GetByID returns the delegation with the given ID.
func (r *DelegationRepo) GetByID(ctx context.Context, id string) (*domain.Delegation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+delegationColumns+` FROM delegations WHERE id = ?`, id)
	return scanDelegation(row.Scan)
}

// ListForDelegatee returns all delegations held by the principal in the
// circle, any status, oldest first.
func (r *DelegationRepo) ListForDelegatee(ctx context.Context, circleID string, delegatee domain.Principal) ([]domain.Delegation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+delegationColumns+` FROM delegations
		 WHERE circle_id = ? AND delegatee_key = ? ORDER BY created_at, id`,
		circleID, delegatee.Key())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListForDelegator returns a page of delegations issued by the membership.
func (r *DelegationRepo) ListForDelegator(ctx context.Context, membershipID string, page domain.PageRequest) ([]domain.Delegation, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delegations WHERE delegator_membership_id = ?`,
		membershipID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+delegationColumns+` FROM delegations
		 WHERE delegator_membership_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
		membershipID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// MarkRevoked transitions active→revoked, conditional on the stored status
// still being active. A false return means a concurrent transition won;
// exactly one terminal state ever lands.
func (r *DelegationRepo) MarkRevoked(ctx context.Context, id, revokedBy string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE delegations SET status = ?, revoked_at = ?, revoked_by = ?
		 WHERE id = ? AND status = ?`,
		domain.DelegationRevoked, at, revokedBy, id, domain.DelegationActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkExpired transitions active→expired under the same conditional guard,
// making lazy expiry durable exactly once even under concurrent callers.
func (r *DelegationRepo) MarkExpired(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE delegations SET status = ? WHERE id = ? AND status = ?`,
		domain.DelegationExpired, id, domain.DelegationActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
