// Package access implements the coordination-circle trust model: the role
// registry, membership store, delegation engine, and authorization
// evaluator, layered over the domain repository interfaces.
package access

import (
	"context"
	"errors"
	"time"

	"circle-core/internal/domain"
	"circle-core/internal/scopes"
)

// Decision source constants: which grant path satisfied (or failed to
// satisfy) the required scope.
const (
	SourceRole       = "role"
	SourceDelegation = "delegation"
	SourceBoth       = "both"
	SourceNone       = "none"
)

// Decision is the result of an authorization check. Denials are data, not
// errors: Source records which of {role, delegation, both, neither}
// contributed, and Missing names the unsatisfied scope, for auditability.
type Decision struct {
	Allowed bool
	Source  string
	Missing string
}

// AuthorizationService answers allow/deny for (circle, principal, scope) by
// composing membership role scopes with active delegated scopes. It is
// side-effect free and recomputes from committed state on every call — no
// caching across administrative mutations.
type AuthorizationService struct {
	memberships domain.MembershipRepository
	roles       domain.RoleRepository
	delegations domain.DelegationRepository
	catalog     *scopes.Catalog

	now func() time.Time
}

// NewAuthorizationService creates an AuthorizationService backed by domain
// repositories and the process scope catalog.
func NewAuthorizationService(
	memberships domain.MembershipRepository,
	roles domain.RoleRepository,
	delegations domain.DelegationRepository,
	catalog *scopes.Catalog,
) *AuthorizationService {
	return &AuthorizationService{
		memberships: memberships,
		roles:       roles,
		delegations: delegations,
		catalog:     catalog,
		now:         time.Now,
	}
}

// roleScopes returns the principal's role scope set in the circle: the
// scopes of the role bound to its active membership, or nil when the
// principal holds no active membership.
func (s *AuthorizationService) roleScopes(ctx context.Context, circleID string, p domain.Principal) ([]string, error) {
	m, err := s.memberships.GetActiveByPrincipal(ctx, circleID, p)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, m.RoleID)
	if err != nil {
		return nil, err
	}
	return role.Scopes, nil
}

// delegatedScopes unions the scopes of every delegation to the principal in
// the circle whose resolved status is active. Expiry is evaluated lazily
// against the clock; stored status is never trusted alone.
func (s *AuthorizationService) delegatedScopes(ctx context.Context, circleID string, p domain.Principal) ([]string, error) {
	ds, err := s.delegations.ListForDelegatee(ctx, circleID, p)
	if err != nil {
		return nil, err
	}
	now := s.now()
	seen := make(map[string]struct{})
	var out []string
	for i := range ds {
		if ds[i].EffectiveStatus(now) != domain.DelegationActive {
			continue
		}
		for _, sc := range ds[i].Scopes {
			if _, dup := seen[sc]; dup {
				continue
			}
			seen[sc] = struct{}{}
			out = append(out, sc)
		}
	}
	return out, nil
}

// EffectiveScopes returns the principal's role scopes and active delegated
// scopes in the circle, unexpanded. The effective set is their union under
// the catalog's implication closure.
func (s *AuthorizationService) EffectiveScopes(ctx context.Context, circleID string, p domain.Principal) (role, delegated []string, err error) {
	role, err = s.roleScopes(ctx, circleID, p)
	if err != nil {
		return nil, nil, err
	}
	delegated, err = s.delegatedScopes(ctx, circleID, p)
	if err != nil {
		return nil, nil, err
	}
	return role, delegated, nil
}

// Authorize decides whether the principal may exercise requiredScope in the
// circle. A scope identifier outside the catalog is a configuration error
// (UnknownScopeError), never retried. Identical inputs against unchanged
// state return identical decisions.
func (s *AuthorizationService) Authorize(ctx context.Context, circleID string, p domain.Principal, requiredScope string) (Decision, error) {
	if err := s.catalog.Validate([]string{requiredScope}); err != nil {
		return Decision{}, err
	}
	if err := p.Validate(); err != nil {
		return Decision{}, err
	}

	roleScopes, delegated, err := s.EffectiveScopes(ctx, circleID, p)
	if err != nil {
		return Decision{}, err
	}

	byRole := s.catalog.Satisfies(roleScopes, requiredScope)
	byDelegation := s.catalog.Satisfies(delegated, requiredScope)

	switch {
	case byRole && byDelegation:
		return Decision{Allowed: true, Source: SourceBoth}, nil
	case byRole:
		return Decision{Allowed: true, Source: SourceRole}, nil
	case byDelegation:
		return Decision{Allowed: true, Source: SourceDelegation}, nil
	}

	source := SourceNone
	if len(roleScopes) > 0 && len(delegated) > 0 {
		source = SourceBoth
	} else if len(roleScopes) > 0 {
		source = SourceRole
	} else if len(delegated) > 0 {
		source = SourceDelegation
	}
	return Decision{Allowed: false, Source: source, Missing: requiredScope}, nil
}

// requireScope is the internal guard used by mutating services: it maps a
// deny decision to an AccessDeniedError carrying the decision detail.
func (s *AuthorizationService) requireScope(ctx context.Context, circleID string, p domain.Principal, requiredScope string) error {
	d, err := s.Authorize(ctx, circleID, p, requiredScope)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &domain.AccessDeniedError{
			Message: "principal " + p.Key() + " lacks scope " + requiredScope,
			Source:  d.Source,
			Missing: d.Missing,
		}
	}
	return nil
}

// isOwner reports whether the principal holds the circle's owner membership.
func (s *AuthorizationService) isOwner(ctx context.Context, circleID string, p domain.Principal) (bool, error) {
	owner, err := s.memberships.GetOwner(ctx, circleID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return owner.Principal == p, nil
}
