package repository

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "circle-core/internal/db"
	"circle-core/internal/domain"
)

func setupDelegationRepo(t *testing.T) (*DelegationRepo, *domain.Circle, *domain.Membership) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	circles := NewCircleRepo(writeDB)
	circle, _, ownerMembership := seedCircleRow(t, circles, "Garden", "garden", domain.Individual("owner"))
	return NewDelegationRepo(writeDB), circle, ownerMembership
}

func seedDelegation(t *testing.T, repo *DelegationRepo, circleID, delegatorID string, delegatee domain.Principal, expiresAt *time.Time) *domain.Delegation {
	t.Helper()
	d, err := repo.Create(context.Background(), &domain.Delegation{
		ID:                    domain.NewID(),
		CircleID:              circleID,
		DelegatorMembershipID: delegatorID,
		Delegatee:             delegatee,
		Scopes:                []string{"manage_events", "view"},
		Status:                domain.DelegationActive,
		ExpiresAt:             expiresAt,
		CreatedAt:             time.Now().UTC(),
	})
	require.NoError(t, err)
	return d
}

func TestDelegationRepo_CreateAndGet(t *testing.T) {
	repo, circle, owner := setupDelegationRepo(t)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	d := seedDelegation(t, repo, circle.ID, owner.ID, domain.Organization("org-1"), &expiry)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationActive, got.Status)
	assert.Equal(t, []string{"manage_events", "view"}, got.Scopes)
	assert.Equal(t, domain.Organization("org-1"), got.Delegatee)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expiry))
	assert.Nil(t, got.RevokedAt)
	assert.Nil(t, got.RevokedBy)
}

func TestDelegationRepo_MarkRevoked_ExactlyOnce(t *testing.T) {
	repo, circle, owner := setupDelegationRepo(t)
	ctx := context.Background()
	d := seedDelegation(t, repo, circle.ID, owner.ID, domain.Individual("d1"), nil)

	at := time.Now().UTC()
	won, err := repo.MarkRevoked(ctx, d.ID, "individual:owner", at)
	require.NoError(t, err)
	assert.True(t, won)

	// The row is terminal: neither a second revoke nor an expiry can
	// transition it again.
	won, err = repo.MarkRevoked(ctx, d.ID, "individual:other", at)
	require.NoError(t, err)
	assert.False(t, won)
	won, err = repo.MarkExpired(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationRevoked, got.Status)
	require.NotNil(t, got.RevokedBy)
	assert.Equal(t, "individual:owner", *got.RevokedBy)
}

func TestDelegationRepo_MarkExpired_ExactlyOnce(t *testing.T) {
	repo, circle, owner := setupDelegationRepo(t)
	ctx := context.Background()
	expiry := time.Now().Add(-time.Minute).UTC()
	d := seedDelegation(t, repo, circle.ID, owner.ID, domain.Individual("d1"), &expiry)

	won, err := repo.MarkExpired(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkExpired(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DelegationExpired, got.Status)
	assert.Nil(t, got.RevokedBy)
}

func TestDelegationRepo_ListForDelegatee(t *testing.T) {
	repo, circle, owner := setupDelegationRepo(t)
	ctx := context.Background()
	delegatee := domain.Individual("d1")

	d1 := seedDelegation(t, repo, circle.ID, owner.ID, delegatee, nil)
	seedDelegation(t, repo, circle.ID, owner.ID, delegatee, nil)
	seedDelegation(t, repo, circle.ID, owner.ID, domain.Individual("someone-else"), nil)

	_, err := repo.MarkRevoked(ctx, d1.ID, "individual:owner", time.Now().UTC())
	require.NoError(t, err)

	// All statuses come back: the caller resolves effective status.
	ds, err := repo.ListForDelegatee(ctx, circle.ID, delegatee)
	require.NoError(t, err)
	assert.Len(t, ds, 2)
}

func TestDelegationRepo_ListForDelegator_Paginated(t *testing.T) {
	repo, circle, owner := setupDelegationRepo(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedDelegation(t, repo, circle.ID, owner.ID, domain.Individual(domain.NewID()), nil)
	}

	page, total, err := repo.ListForDelegator(ctx, owner.ID, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
}
