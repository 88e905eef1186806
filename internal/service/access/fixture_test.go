package access

import (
	"context"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	internaldb "circle-core/internal/db"
	"circle-core/internal/db/repository"
	"circle-core/internal/domain"
	"circle-core/internal/scopes"
)

// fixture wires every access service over one temporary SQLite database so
// tests exercise the real repositories and migrations.
type fixture struct {
	circles     *CircleService
	roles       *RoleService
	members     *MembershipService
	delegations *DelegationService
	authz       *AuthorizationService
	audits      domain.AuditRepository
	catalog     *scopes.Catalog
	ctx         context.Context
}

func setupAccess(t *testing.T) *fixture {
	t.Helper()

	db, _ := internaldb.OpenTestSQLite(t)

	circleRepo := repository.NewCircleRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	membershipRepo := repository.NewMembershipRepo(db)
	delegationRepo := repository.NewDelegationRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	catalog := scopes.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authz := NewAuthorizationService(membershipRepo, roleRepo, delegationRepo, catalog)

	return &fixture{
		circles:     NewCircleService(circleRepo, auditRepo, catalog, authz, logger),
		roles:       NewRoleService(roleRepo, circleRepo, auditRepo, catalog, authz, logger),
		members:     NewMembershipService(membershipRepo, roleRepo, circleRepo, auditRepo, authz, logger),
		delegations: NewDelegationService(delegationRepo, membershipRepo, roleRepo, circleRepo, auditRepo, catalog, authz, logger),
		authz:       authz,
		audits:      auditRepo,
		catalog:     catalog,
		ctx:         context.Background(),
	}
}

// seedCircle creates a circle owned by owner and returns it with the owner
// membership.
func seedCircle(t *testing.T, f *fixture, name string, owner domain.Principal) (*domain.Circle, *domain.Membership) {
	t.Helper()
	circle, ownerMembership, err := f.circles.CreateCircleWithOwner(f.ctx, name, owner)
	require.NoError(t, err)
	return circle, ownerMembership
}

// seedRole creates a non-owner role in the circle, acting as the owner.
func seedRole(t *testing.T, f *fixture, circleID, name string, scopeNames []string, level string, acting domain.Principal) *domain.Role {
	t.Helper()
	role, err := f.roles.CreateRole(f.ctx, circleID, name, scopeNames, level, acting)
	require.NoError(t, err)
	return role
}

// seedMember adds p to the circle under roleID, acting as the owner.
func seedMember(t *testing.T, f *fixture, circleID string, p domain.Principal, roleID string, acting domain.Principal) *domain.Membership {
	t.Helper()
	m, err := f.members.AddMember(f.ctx, circleID, p, roleID, acting)
	require.NoError(t, err)
	return m
}
