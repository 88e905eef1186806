package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circle-core/internal/domain"
)

func TestCreateCircleWithOwner(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")

	circle, ownerMembership, err := f.circles.CreateCircleWithOwner(f.ctx, "Garden Collective", owner)
	require.NoError(t, err)
	assert.Equal(t, "garden-collective", circle.Slug)
	assert.Equal(t, domain.CircleActive, circle.Status)
	assert.True(t, ownerMembership.IsActive)
	assert.Equal(t, owner, ownerMembership.Principal)

	// The owner role holds the full catalog.
	ownerRole, err := f.roles.GetRole(f.ctx, ownerMembership.RoleID)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelOwner, ownerRole.Level)
	assert.ElementsMatch(t, f.catalog.Scopes(), ownerRole.Scopes)

	// Owner is immediately authorized for everything in the catalog.
	for _, sc := range f.catalog.Scopes() {
		d, err := f.authz.Authorize(f.ctx, circle.ID, owner, sc)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "owner should hold %s", sc)
	}
}

func TestCreateCircle_InvalidInput(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")

	_, _, err := f.circles.CreateCircleWithOwner(f.ctx, "   ", owner)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, _, err = f.circles.CreateCircleWithOwner(f.ctx, "Garden", domain.Principal{Type: "robot", ID: "x"})
	assert.ErrorAs(t, err, &validation)
}

func TestCreateCircle_DuplicateSlug(t *testing.T) {
	f := setupAccess(t)
	seedCircle(t, f, "Garden Collective", domain.Individual("a"))

	_, _, err := f.circles.CreateCircleWithOwner(f.ctx, "Garden   Collective", domain.Individual("b"))
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestArchiveCircle_OwnerAllowed(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	circle, _ := seedCircle(t, f, "Garden Collective", owner)

	require.NoError(t, f.circles.ArchiveCircle(f.ctx, circle.ID, owner))

	got, err := f.circles.GetCircle(f.ctx, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CircleArchived, got.Status)

	// Archival is not idempotent: the second attempt is a state conflict.
	err = f.circles.ArchiveCircle(f.ctx, circle.ID, owner)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestArchiveCircle_StrangerDenied(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	circle, _ := seedCircle(t, f, "Garden Collective", owner)

	err := f.circles.ArchiveCircle(f.ctx, circle.ID, domain.Individual("stranger"))
	var denied *domain.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "manage_circle", denied.Missing)
}

func TestArchiveCircle_ManageCircleHolderAllowed(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	circle, _ := seedCircle(t, f, "Garden Collective", owner)

	admin := domain.Individual("ind-admin")
	adminRole := seedRole(t, f, circle.ID, "Admin", []string{"manage_circle"}, domain.LevelAdmin, owner)
	seedMember(t, f, circle.ID, admin, adminRole.ID, owner)

	require.NoError(t, f.circles.ArchiveCircle(f.ctx, circle.ID, admin))
}

func TestArchivedCircle_MutationsRejected_ReadsAllowed(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	circle, _ := seedCircle(t, f, "Garden Collective", owner)
	helper := seedRole(t, f, circle.ID, "Helper", []string{"view"}, domain.LevelMember, owner)
	member := seedMember(t, f, circle.ID, domain.Individual("m1"), helper.ID, owner)

	require.NoError(t, f.circles.ArchiveCircle(f.ctx, circle.ID, owner))

	var conflict *domain.ConflictError

	_, err := f.members.AddMember(f.ctx, circle.ID, domain.Individual("m2"), helper.ID, owner)
	assert.ErrorAs(t, err, &conflict)

	_, err = f.roles.CreateRole(f.ctx, circle.ID, "Late", []string{"view"}, domain.LevelMember, owner)
	assert.ErrorAs(t, err, &conflict)

	err = f.members.RemoveMember(f.ctx, circle.ID, member.ID, owner)
	assert.ErrorAs(t, err, &conflict)

	_, err = f.delegations.CreateDelegation(f.ctx, circle.ID, member.ID, domain.Individual("d1"), []string{"view"}, nil, domain.Individual("m1"))
	assert.ErrorAs(t, err, &conflict)

	// Reads and authorization checks still work over the frozen state.
	got, err := f.circles.GetCircleBySlug(f.ctx, "garden-collective")
	require.NoError(t, err)
	assert.Equal(t, domain.CircleArchived, got.Status)

	d, err := f.authz.Authorize(f.ctx, circle.ID, domain.Individual("m1"), "view")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestListCircles_Pagination(t *testing.T) {
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	seedCircle(t, f, "Alpha", owner)
	seedCircle(t, f, "Beta", owner)
	seedCircle(t, f, "Gamma", owner)

	page1, total, err := f.circles.ListCircles(f.ctx, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page1, 2)

	token := domain.NextPageToken(0, 2, total)
	require.NotEmpty(t, token)
	page2, _, err := f.circles.ListCircles(f.ctx, domain.PageRequest{MaxResults: 2, PageToken: token})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

func TestGetCircle_NotFound(t *testing.T) {
	f := setupAccess(t)

	_, err := f.circles.GetCircle(f.ctx, "no-such-id")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
