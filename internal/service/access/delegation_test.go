package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"circle-core/internal/domain"
)

// delegationFixture seeds a circle with an owner, an organizer member, and
// returns everything delegation tests need.
type delegationFixture struct {
	*fixture
	circle     *domain.Circle
	owner      domain.Principal
	member     domain.Principal
	membership *domain.Membership
}

func setupDelegation(t *testing.T, memberScopes []string) *delegationFixture {
	t.Helper()
	f := setupAccess(t)
	owner := domain.Individual("ind-owner")
	circle, _ := seedCircle(t, f, "Garden Collective", owner)
	role := seedRole(t, f, circle.ID, "Organizer", memberScopes, domain.LevelMember, owner)
	member := domain.Individual("ind-member")
	membership := seedMember(t, f, circle.ID, member, role.ID, owner)
	return &delegationFixture{fixture: f, circle: circle, owner: owner, member: member, membership: membership}
}

func TestCreateDelegation_SubsetOfRoleScopes(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events", "post_updates"})
	delegatee := domain.Individual("helper")

	d, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, delegatee, []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationActive, d.Status)
	assert.Nil(t, d.ExpiresAt)

	dec, err := df.authz.Authorize(df.ctx, df.circle.ID, delegatee, "manage_events")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, SourceDelegation, dec.Source)
}

func TestCreateDelegation_ImpliedScopeAccepted(t *testing.T) {
	// manage_circle implies manage_members, so a manage_circle holder may
	// delegate manage_members without holding it literally.
	df := setupDelegation(t, []string{"manage_circle"})

	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_members"}, nil, df.member)
	require.NoError(t, err)
}

func TestCreateDelegation_ScopeNotHeld(t *testing.T) {
	df := setupDelegation(t, []string{"view"})

	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"view", "manage_members", "manage_roles"}, nil, df.member)
	var notHeld *domain.ScopeNotHeldError
	require.ErrorAs(t, err, &notHeld)
	assert.ElementsMatch(t, []string{"manage_members", "manage_roles"}, notHeld.Missing)
}

func TestCreateDelegation_NotTransitive(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	// The member delegates manage_events to a second member of the circle.
	helperRole := seedRole(t, df.fixture, df.circle.ID, "Helper", []string{"view"}, domain.LevelMember, df.owner)
	second := domain.Individual("second")
	secondMembership := seedMember(t, df.fixture, df.circle.ID, second, helperRole.ID, df.owner)

	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, second, []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)

	// The delegatee is authorized for the scope...
	dec, err := df.authz.Authorize(df.ctx, df.circle.ID, second, "manage_events")
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	// ...but cannot re-delegate it: the subset check runs against role
	// scopes only.
	_, err = df.delegations.CreateDelegation(df.ctx, df.circle.ID, secondMembership.ID, domain.Individual("third"), []string{"manage_events"}, nil, second)
	var notHeld *domain.ScopeNotHeldError
	assert.ErrorAs(t, err, &notHeld)
}

func TestCreateDelegation_Validation(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})
	var validation *domain.ValidationError

	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), nil, nil, df.member)
	assert.ErrorAs(t, err, &validation)

	past := time.Now().Add(-time.Hour)
	_, err = df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_events"}, &past, df.member)
	assert.ErrorAs(t, err, &validation)

	_, err = df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"no_such_scope"}, nil, df.member)
	var unknown *domain.UnknownScopeError
	assert.ErrorAs(t, err, &unknown)
}

func TestCreateDelegation_OnlyDelegatorMayIssue(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	// Not even the owner may issue on another membership's behalf.
	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_events"}, nil, df.owner)
	var denied *domain.AccessDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestRevokeDelegation_ByDelegator(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})
	delegatee := domain.Individual("helper")
	d, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, delegatee, []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)

	got, err := df.delegations.RevokeDelegation(df.ctx, d.ID, df.member)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationRevoked, got.Status)
	require.NotNil(t, got.RevokedBy)
	assert.Equal(t, df.member.Key(), *got.RevokedBy)
	assert.NotNil(t, got.RevokedAt)

	dec, err := df.authz.Authorize(df.ctx, df.circle.ID, delegatee, "manage_events")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	// Revoking again reports the terminal state, an idempotency signal.
	_, err = df.delegations.RevokeDelegation(df.ctx, d.ID, df.member)
	var terminal *domain.TerminalStateError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, domain.DelegationRevoked, terminal.Status)
}

func TestRevokeDelegation_ByOwnerAndManageMembersHolder(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	d1, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("h1"), []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.RevokeDelegation(df.ctx, d1.ID, df.owner)
	require.NoError(t, err)

	adminRole := seedRole(t, df.fixture, df.circle.ID, "Admin", []string{"manage_members"}, domain.LevelAdmin, df.owner)
	admin := domain.Individual("admin")
	seedMember(t, df.fixture, df.circle.ID, admin, adminRole.ID, df.owner)

	d2, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("h2"), []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.RevokeDelegation(df.ctx, d2.ID, admin)
	require.NoError(t, err)

	d3, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("h3"), []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.RevokeDelegation(df.ctx, d3.ID, domain.Individual("stranger"))
	var denied *domain.AccessDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestDelegation_LazyExpiry(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})
	delegatee := domain.Individual("helper")

	expiry := time.Now().Add(time.Hour)
	d, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, delegatee, []string{"manage_events"}, &expiry, df.member)
	require.NoError(t, err)

	dec, err := df.authz.Authorize(df.ctx, df.circle.ID, delegatee, "manage_events")
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	// Move the clock past the expiry. No scheduler runs; the scope simply
	// stops contributing.
	later := expiry.Add(time.Minute)
	df.authz.now = func() time.Time { return later }
	df.delegations.now = func() time.Time { return later }

	dec, err = df.authz.Authorize(df.ctx, df.circle.ID, delegatee, "manage_events")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	// Stored status is still active until someone materializes the expiry.
	stored, err := df.delegations.GetDelegation(df.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationActive, stored.Status)
	assert.Equal(t, domain.DelegationExpired, df.delegations.ResolveStatus(stored))

	materialized, err := df.delegations.MaterializeExpiry(df.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationExpired, materialized.Status)
}

func TestRevokeDelegation_AfterClockExpiry(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	expiry := time.Now().Add(time.Hour)
	d, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_events"}, &expiry, df.member)
	require.NoError(t, err)

	df.delegations.now = func() time.Time { return expiry.Add(time.Minute) }

	// The revoke observes the expiry, materializes it, and reports the
	// terminal state rather than flipping expired to revoked.
	_, err = df.delegations.RevokeDelegation(df.ctx, d.ID, df.member)
	var terminal *domain.TerminalStateError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, domain.DelegationExpired, terminal.Status)

	stored, err := df.delegations.GetDelegation(df.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationExpired, stored.Status)
}

func TestDelegation_RevokeRacesExpiry(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	expiry := time.Now().Add(time.Hour)
	d, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_events"}, &expiry, df.member)
	require.NoError(t, err)

	// At the expiry instant a revoke and an expiry materialization race.
	// Exactly one transition wins; the loser observes a terminal state.
	df.delegations.now = func() time.Time { return expiry.Add(time.Second) }

	var g errgroup.Group
	g.Go(func() error {
		_, err := df.delegations.RevokeDelegation(df.ctx, d.ID, df.member)
		if err != nil {
			var terminal *domain.TerminalStateError
			if assert.ErrorAs(t, err, &terminal) {
				return nil
			}
		}
		return err
	})
	g.Go(func() error {
		_, err := df.delegations.MaterializeExpiry(df.ctx, d.ID)
		return err
	})
	require.NoError(t, g.Wait())

	stored, err := df.delegations.GetDelegation(df.ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.Terminal())
}

func TestActiveDelegatedScopes_FreshUnion(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events", "post_updates"})
	delegatee := domain.Individual("helper")

	d1, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, delegatee, []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, delegatee, []string{"post_updates"}, nil, df.member)
	require.NoError(t, err)

	got, err := df.delegations.ActiveDelegatedScopes(df.ctx, df.circle.ID, delegatee)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"manage_events", "post_updates"}, got)

	// Revoking one delegation narrows the union on the next call.
	_, err = df.delegations.RevokeDelegation(df.ctx, d1.ID, df.member)
	require.NoError(t, err)
	got, err = df.delegations.ActiveDelegatedScopes(df.ctx, df.circle.ID, delegatee)
	require.NoError(t, err)
	assert.Equal(t, []string{"post_updates"}, got)
}

func TestListDelegationsForDelegator_IncludesTerminal(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})

	d1, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("h1"), []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("h2"), []string{"manage_events"}, nil, df.member)
	require.NoError(t, err)
	_, err = df.delegations.RevokeDelegation(df.ctx, d1.ID, df.member)
	require.NoError(t, err)

	ds, total, err := df.delegations.ListDelegationsForDelegator(df.ctx, df.membership.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, ds, 2)
}

func TestCreateDelegation_InactiveDelegator(t *testing.T) {
	df := setupDelegation(t, []string{"manage_events"})
	require.NoError(t, df.members.RemoveMember(df.ctx, df.circle.ID, df.membership.ID, df.owner))

	_, err := df.delegations.CreateDelegation(df.ctx, df.circle.ID, df.membership.ID, domain.Individual("helper"), []string{"manage_events"}, nil, df.member)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}
