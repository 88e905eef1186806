package domain

import (
	"context"
	"time"
)

// CircleRepository provides persistence for circles.
type CircleRepository interface {
	// CreateWithOwner inserts the circle, its owner role, and the owner
	// membership in a single transaction. No partial state is observable.
	CreateWithOwner(ctx context.Context, c *Circle, ownerRole *Role, ownerMembership *Membership) error
	GetByID(ctx context.Context, id string) (*Circle, error)
	GetBySlug(ctx context.Context, slug string) (*Circle, error)
	List(ctx context.Context, page PageRequest) ([]Circle, int64, error)
	// Archive transitions status active→archived, conditional on the current
	// status being active. Returns ConflictError when the circle is already
	// inactive or archived.
	Archive(ctx context.Context, id string) error
}

// RoleRepository provides persistence for roles.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) (*Role, error)
	GetByID(ctx context.Context, id string) (*Role, error)
	ListForCircle(ctx context.Context, circleID string) ([]Role, error)
	// UpdateScopes replaces the role's scope set. The update predicate
	// excludes owner-level roles; attempts against one report zero rows and
	// surface as InvariantError at the service layer.
	UpdateScopes(ctx context.Context, roleID string, scopes []string) error
}

// MembershipRepository provides persistence for memberships.
type MembershipRepository interface {
	Add(ctx context.Context, m *Membership) (*Membership, error)
	GetByID(ctx context.Context, id string) (*Membership, error)
	// GetActiveByPrincipal returns the principal's single active membership
	// in the circle, or NotFoundError.
	GetActiveByPrincipal(ctx context.Context, circleID string, p Principal) (*Membership, error)
	// GetOwner returns the circle's owner membership (role level = owner).
	GetOwner(ctx context.Context, circleID string) (*Membership, error)
	ListForCircle(ctx context.Context, circleID string, page PageRequest) ([]Membership, int64, error)
	// SetRole reassigns the membership's role. The invariants (membership
	// active, neither current nor target role owner-level, target role in
	// the same circle) are re-validated inside the transaction against
	// committed state, so concurrent role changes serialize with
	// last-committed-wins semantics.
	SetRole(ctx context.Context, membershipID, newRoleID string) error
	// DeactivateCascade marks the membership inactive and revokes (never
	// deletes) every delegation it issued, in one transaction.
	DeactivateCascade(ctx context.Context, membershipID, revokedBy string, at time.Time) error
}

// DelegationRepository provides persistence for delegations. Terminal rows
// are immutable history and are never deleted.
type DelegationRepository interface {
	Create(ctx context.Context, d *Delegation) (*Delegation, error)
	GetByID(ctx context.Context, id string) (*Delegation, error)
	// ListForDelegatee returns all delegations (any status) held by the
	// principal in the circle.
	ListForDelegatee(ctx context.Context, circleID string, delegatee Principal) ([]Delegation, error)
	ListForDelegator(ctx context.Context, membershipID string, page PageRequest) ([]Delegation, int64, error)
	// MarkRevoked transitions active→revoked conditional on the stored
	// status still being active. Returns false (no error) when a concurrent
	// transition won.
	MarkRevoked(ctx context.Context, id, revokedBy string, at time.Time) (bool, error)
	// MarkExpired transitions active→expired under the same conditional
	// guard, making lazy expiry durable exactly once.
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// AuditRepository provides operations for audit log entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
}
