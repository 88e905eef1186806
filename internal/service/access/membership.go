package access

import (
	"context"
	"log/slog"
	"time"

	"circle-core/internal/domain"
)

// MembershipService owns the circle↔principal↔role bindings. Removal
// deactivates rather than deletes, and cascades revocation over the
// member's issued delegations.
type MembershipService struct {
	memberships domain.MembershipRepository
	roles       domain.RoleRepository
	circles     domain.CircleRepository
	auditor     domain.AuditRepository
	authz       *AuthorizationService
	logger      *slog.Logger
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(
	memberships domain.MembershipRepository,
	roles domain.RoleRepository,
	circles domain.CircleRepository,
	auditor domain.AuditRepository,
	authz *AuthorizationService,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		roles:       roles,
		circles:     circles,
		auditor:     auditor,
		authz:       authz,
		logger:      logger,
	}
}

// AddMember binds a principal to the circle via a non-owner role. The
// acting principal needs manage_members. A principal may hold at most one
// active membership per circle.
func (s *MembershipService) AddMember(ctx context.Context, circleID string, p domain.Principal, roleID string, acting domain.Principal) (*domain.Membership, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := requireActiveCircle(ctx, s.circles, circleID); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.CircleID != circleID {
		return nil, domain.ErrValidation("role %q belongs to a different circle", role.Name)
	}
	if role.IsOwner() {
		return nil, domain.ErrOwnerRoleImmutable()
	}
	if err := s.authz.requireScope(ctx, circleID, acting, "manage_members"); err != nil {
		audit(ctx, s.auditor, s.logger, &circleID, acting, "ADD_MEMBER", domain.AuditDenied, err.Error())
		return nil, err
	}

	m, err := s.memberships.Add(ctx, &domain.Membership{
		ID:        domain.NewID(),
		CircleID:  circleID,
		Principal: p,
		RoleID:    roleID,
		IsActive:  true,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	audit(ctx, s.auditor, s.logger, &circleID, acting, "ADD_MEMBER", domain.AuditAllowed, "member="+p.Key())
	s.logger.Info("member added", "circle", circleID, "member", p.Key(), "role", role.Name)
	return m, nil
}

// RemoveMember deactivates the membership and revokes (never deletes) every
// delegation it issued, atomically. The owner cannot be removed. The acting
// principal needs manage_members even when removing itself.
func (s *MembershipService) RemoveMember(ctx context.Context, circleID, membershipID string, acting domain.Principal) error {
	if _, err := requireActiveCircle(ctx, s.circles, circleID); err != nil {
		return err
	}
	target, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if target.CircleID != circleID {
		return domain.ErrNotFound("membership %q not found in circle", membershipID)
	}
	targetRole, err := s.roles.GetByID(ctx, target.RoleID)
	if err != nil {
		return err
	}
	if targetRole.IsOwner() {
		return domain.ErrCannotRemoveOwner()
	}
	if err := s.authz.requireScope(ctx, circleID, acting, "manage_members"); err != nil {
		audit(ctx, s.auditor, s.logger, &circleID, acting, "REMOVE_MEMBER", domain.AuditDenied, err.Error())
		return err
	}

	if err := s.memberships.DeactivateCascade(ctx, membershipID, acting.Key(), time.Now().UTC()); err != nil {
		return err
	}
	audit(ctx, s.auditor, s.logger, &circleID, acting, "REMOVE_MEMBER", domain.AuditAllowed, "member="+target.Principal.Key())
	s.logger.Info("member removed", "circle", circleID, "member", target.Principal.Key(), "by", acting.Key())
	return nil
}

// ChangeMemberRole reassigns a membership to another non-owner role in the
// same circle. Neither the source nor the target role may be the owner
// role. The repository re-validates inside its transaction, so concurrent
// changes serialize with last-committed-wins.
func (s *MembershipService) ChangeMemberRole(ctx context.Context, membershipID, newRoleID string, acting domain.Principal) error {
	target, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if _, err := requireActiveCircle(ctx, s.circles, target.CircleID); err != nil {
		return err
	}
	currentRole, err := s.roles.GetByID(ctx, target.RoleID)
	if err != nil {
		return err
	}
	if currentRole.IsOwner() {
		return domain.ErrOwnerRoleImmutable()
	}
	newRole, err := s.roles.GetByID(ctx, newRoleID)
	if err != nil {
		return err
	}
	if newRole.CircleID != target.CircleID {
		return domain.ErrValidation("role %q belongs to a different circle", newRole.Name)
	}
	if newRole.IsOwner() {
		return domain.ErrOwnerRoleImmutable()
	}
	if err := s.authz.requireScope(ctx, target.CircleID, acting, "manage_members"); err != nil {
		audit(ctx, s.auditor, s.logger, &target.CircleID, acting, "CHANGE_MEMBER_ROLE", domain.AuditDenied, err.Error())
		return err
	}

	if err := s.memberships.SetRole(ctx, membershipID, newRoleID); err != nil {
		return err
	}
	audit(ctx, s.auditor, s.logger, &target.CircleID, acting, "CHANGE_MEMBER_ROLE", domain.AuditAllowed,
		"member="+target.Principal.Key()+" role="+newRole.Name)
	return nil
}

// EffectiveRoleScopes is the pure read behind scope evaluation: the role's
// scope set when the membership is active, the empty set otherwise.
func (s *MembershipService) EffectiveRoleScopes(ctx context.Context, membershipID string) ([]string, error) {
	m, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, nil
	}
	role, err := s.roles.GetByID(ctx, m.RoleID)
	if err != nil {
		return nil, err
	}
	return role.Scopes, nil
}

// GetMembership returns a membership by ID.
func (s *MembershipService) GetMembership(ctx context.Context, membershipID string) (*domain.Membership, error) {
	return s.memberships.GetByID(ctx, membershipID)
}

// ListMembers returns a page of the circle's memberships, history included.
func (s *MembershipService) ListMembers(ctx context.Context, circleID string, page domain.PageRequest) ([]domain.Membership, int64, error) {
	return s.memberships.ListForCircle(ctx, circleID, page)
}
