package access

import (
	"context"
	"log/slog"
	"time"

	"circle-core/internal/domain"
	"circle-core/internal/scopes"
)

// DelegationService creates, resolves, and revokes time-bounded scope grants
// from a member to another principal. Delegation is not transitive: the
// subset check runs against the delegator's role scopes only, never against
// scopes the delegator itself received by delegation.
type DelegationService struct {
	delegations domain.DelegationRepository
	memberships domain.MembershipRepository
	roles       domain.RoleRepository
	circles     domain.CircleRepository
	auditor     domain.AuditRepository
	catalog     *scopes.Catalog
	authz       *AuthorizationService
	logger      *slog.Logger

	now func() time.Time
}

// NewDelegationService creates a new DelegationService.
func NewDelegationService(
	delegations domain.DelegationRepository,
	memberships domain.MembershipRepository,
	roles domain.RoleRepository,
	circles domain.CircleRepository,
	auditor domain.AuditRepository,
	catalog *scopes.Catalog,
	authz *AuthorizationService,
	logger *slog.Logger,
) *DelegationService {
	return &DelegationService{
		delegations: delegations,
		memberships: memberships,
		roles:       roles,
		circles:     circles,
		auditor:     auditor,
		catalog:     catalog,
		authz:       authz,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateDelegation issues a grant from the delegator membership to the
// delegatee principal. Every requested scope must equal or be implied by a
// scope on the delegator's role at creation time; the grant is frozen
// afterwards (later role shrinkage does not re-validate it). Only the
// delegator's own principal may issue its delegations.
func (s *DelegationService) CreateDelegation(ctx context.Context, circleID, delegatorMembershipID string, delegatee domain.Principal, requestedScopes []string, expiresAt *time.Time, acting domain.Principal) (*domain.Delegation, error) {
	if len(requestedScopes) == 0 {
		return nil, domain.ErrValidation("requested scope set is empty")
	}
	if err := s.catalog.Validate(requestedScopes); err != nil {
		return nil, err
	}
	if err := delegatee.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, domain.ErrValidation("expiry must be strictly in the future")
	}
	if _, err := requireActiveCircle(ctx, s.circles, circleID); err != nil {
		return nil, err
	}

	delegator, err := s.memberships.GetByID(ctx, delegatorMembershipID)
	if err != nil {
		return nil, err
	}
	if delegator.CircleID != circleID {
		return nil, domain.ErrNotFound("membership %q not found in circle", delegatorMembershipID)
	}
	if !delegator.IsActive {
		return nil, domain.ErrConflict("delegator membership is inactive")
	}
	if delegator.Principal != acting {
		err := &domain.AccessDeniedError{
			Message: "only the delegator may issue its delegations",
			Source:  SourceNone,
		}
		audit(ctx, s.auditor, s.logger, &circleID, acting, "CREATE_DELEGATION", domain.AuditDenied, err.Message)
		return nil, err
	}

	role, err := s.roles.GetByID(ctx, delegator.RoleID)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, sc := range requestedScopes {
		if !s.catalog.Satisfies(role.Scopes, sc) {
			missing = append(missing, sc)
		}
	}
	if len(missing) > 0 {
		err := &domain.ScopeNotHeldError{Missing: missing}
		audit(ctx, s.auditor, s.logger, &circleID, acting, "CREATE_DELEGATION", domain.AuditDenied, err.Error())
		return nil, err
	}

	d, err := s.delegations.Create(ctx, &domain.Delegation{
		ID:                    domain.NewID(),
		CircleID:              circleID,
		DelegatorMembershipID: delegatorMembershipID,
		Delegatee:             delegatee,
		Scopes:                requestedScopes,
		Status:                domain.DelegationActive,
		ExpiresAt:             expiresAt,
		CreatedAt:             now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	audit(ctx, s.auditor, s.logger, &circleID, acting, "CREATE_DELEGATION", domain.AuditAllowed,
		"delegatee="+delegatee.Key())
	s.logger.Info("delegation created", "circle", circleID, "delegation", d.ID,
		"delegator", acting.Key(), "delegatee", delegatee.Key())
	return d, nil
}

// RevokeDelegation terminates a delegation early. Permitted to the original
// delegator, any manage_members holder in the circle, or the owner.
// Operating on a delegation already in a terminal state — including one the
// clock has expired but the store has not yet materialized — reports
// TerminalStateError, which callers may treat as success-equivalent.
func (s *DelegationService) RevokeDelegation(ctx context.Context, delegationID string, acting domain.Principal) (*domain.Delegation, error) {
	d, err := s.delegations.GetByID(ctx, delegationID)
	if err != nil {
		return nil, err
	}

	status := d.EffectiveStatus(s.now())
	if status.Terminal() {
		if d.Status == domain.DelegationActive {
			// Clock-expired but not yet durable: materialize before reporting.
			if _, err := s.delegations.MarkExpired(ctx, delegationID); err != nil {
				return nil, err
			}
		}
		return nil, &domain.TerminalStateError{Status: status}
	}

	allowed := d.DelegatorMembershipID != "" && s.isDelegator(ctx, d, acting)
	if !allowed {
		allowed, err = s.authz.isOwner(ctx, d.CircleID, acting)
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		if err := s.authz.requireScope(ctx, d.CircleID, acting, "manage_members"); err != nil {
			audit(ctx, s.auditor, s.logger, &d.CircleID, acting, "REVOKE_DELEGATION", domain.AuditDenied, err.Error())
			return nil, err
		}
	}

	won, err := s.delegations.MarkRevoked(ctx, delegationID, acting.Key(), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent revoke or expiry landed first; report the committed
		// terminal state without touching it.
		d, err = s.delegations.GetByID(ctx, delegationID)
		if err != nil {
			return nil, err
		}
		return nil, &domain.TerminalStateError{Status: d.Status}
	}

	audit(ctx, s.auditor, s.logger, &d.CircleID, acting, "REVOKE_DELEGATION", domain.AuditAllowed,
		"delegation="+delegationID)
	s.logger.Info("delegation revoked", "circle", d.CircleID, "delegation", delegationID, "by", acting.Key())
	return s.delegations.GetByID(ctx, delegationID)
}

// isDelegator reports whether acting is the principal behind the
// delegation's delegator membership.
func (s *DelegationService) isDelegator(ctx context.Context, d *domain.Delegation, acting domain.Principal) bool {
	m, err := s.memberships.GetByID(ctx, d.DelegatorMembershipID)
	if err != nil {
		return false
	}
	return m.Principal == acting
}

// ResolveStatus resolves the delegation's status against the clock without
// mutating storage.
func (s *DelegationService) ResolveStatus(d *domain.Delegation) domain.DelegationStatus {
	return d.EffectiveStatus(s.now())
}

// MaterializeExpiry persists a lazily-observed expiry exactly once. Safe
// under concurrent duplicate calls: the transition is guarded by the stored
// status, and losing the race to a revoke (or another expiry call) is not an
// error — some terminal state is durable either way.
func (s *DelegationService) MaterializeExpiry(ctx context.Context, delegationID string) (*domain.Delegation, error) {
	d, err := s.delegations.GetByID(ctx, delegationID)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DelegationActive && d.EffectiveStatus(s.now()) == domain.DelegationExpired {
		if _, err := s.delegations.MarkExpired(ctx, delegationID); err != nil {
			return nil, err
		}
		return s.delegations.GetByID(ctx, delegationID)
	}
	return d, nil
}

// ActiveDelegatedScopes unions the scopes delegated to the principal in the
// circle across delegations whose resolved status is active. Computed fresh
// on every call so administrative mutations are visible immediately.
func (s *DelegationService) ActiveDelegatedScopes(ctx context.Context, circleID string, delegatee domain.Principal) ([]string, error) {
	return s.authz.delegatedScopes(ctx, circleID, delegatee)
}

// GetDelegation returns a delegation by ID.
func (s *DelegationService) GetDelegation(ctx context.Context, delegationID string) (*domain.Delegation, error) {
	return s.delegations.GetByID(ctx, delegationID)
}

// ListDelegationsForDelegator returns a page of delegations issued by the
// membership, terminal history included.
func (s *DelegationService) ListDelegationsForDelegator(ctx context.Context, membershipID string, page domain.PageRequest) ([]domain.Delegation, int64, error) {
	return s.delegations.ListForDelegator(ctx, membershipID, page)
}
