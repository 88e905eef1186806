package access

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"circle-core/internal/domain"
	"circle-core/internal/scopes"
)

// RoleService is the role registry: circle-scoped named scope bundles with a
// trust level. The owner role is created only by CircleService and is
// immutable here.
type RoleService struct {
	roles   domain.RoleRepository
	circles domain.CircleRepository
	auditor domain.AuditRepository
	catalog *scopes.Catalog
	authz   *AuthorizationService
	logger  *slog.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(
	roles domain.RoleRepository,
	circles domain.CircleRepository,
	auditor domain.AuditRepository,
	catalog *scopes.Catalog,
	authz *AuthorizationService,
	logger *slog.Logger,
) *RoleService {
	return &RoleService{
		roles:   roles,
		circles: circles,
		auditor: auditor,
		catalog: catalog,
		authz:   authz,
		logger:  logger,
	}
}

// CreateRole adds a non-owner role to the circle. Requesting level=owner
// directly is an invariant violation — circle creation is the single path
// that makes an owner role.
func (s *RoleService) CreateRole(ctx context.Context, circleID, name string, scopeNames []string, level string, acting domain.Principal) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrValidation("role name is required")
	}
	if !domain.ValidLevel(level) {
		return nil, domain.ErrValidation("unknown role level %q", level)
	}
	if level == domain.LevelOwner {
		return nil, domain.ErrDuplicateOwnerRole()
	}
	if err := s.catalog.Validate(scopeNames); err != nil {
		return nil, err
	}
	if _, err := requireActiveCircle(ctx, s.circles, circleID); err != nil {
		return nil, err
	}
	if err := s.authz.requireScope(ctx, circleID, acting, "manage_roles"); err != nil {
		audit(ctx, s.auditor, s.logger, &circleID, acting, "CREATE_ROLE", domain.AuditDenied, err.Error())
		return nil, err
	}

	role, err := s.roles.Create(ctx, &domain.Role{
		ID:        domain.NewID(),
		CircleID:  circleID,
		Name:      name,
		Level:     level,
		Scopes:    scopeNames,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	audit(ctx, s.auditor, s.logger, &circleID, acting, "CREATE_ROLE", domain.AuditAllowed, "role="+name)
	return role, nil
}

// UpdateRoleScopes replaces a role's scope set. The owner role is immutable.
// Already-issued delegations are frozen grants: shrinking a role does not
// revoke or re-validate delegations its members issued earlier.
func (s *RoleService) UpdateRoleScopes(ctx context.Context, roleID string, newScopes []string, acting domain.Principal) error {
	if err := s.catalog.Validate(newScopes); err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsOwner() {
		return domain.ErrOwnerRoleImmutable()
	}
	if _, err := requireActiveCircle(ctx, s.circles, role.CircleID); err != nil {
		return err
	}
	if err := s.authz.requireScope(ctx, role.CircleID, acting, "manage_roles"); err != nil {
		audit(ctx, s.auditor, s.logger, &role.CircleID, acting, "UPDATE_ROLE_SCOPES", domain.AuditDenied, err.Error())
		return err
	}

	if err := s.roles.UpdateScopes(ctx, roleID, newScopes); err != nil {
		return err
	}
	audit(ctx, s.auditor, s.logger, &role.CircleID, acting, "UPDATE_ROLE_SCOPES", domain.AuditAllowed, "role="+role.Name)
	return nil
}

// GetRole returns a role by ID.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	return s.roles.GetByID(ctx, roleID)
}

// ListRoles returns the circle's roles, owner first.
func (s *RoleService) ListRoles(ctx context.Context, circleID string) ([]domain.Role, error) {
	return s.roles.ListForCircle(ctx, circleID)
}
