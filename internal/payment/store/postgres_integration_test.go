//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/payment/models"
	rmodels "collecta/internal/registration/models"
	regstore "collecta/internal/registration/store"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
	"collecta/pkg/testutil/containers"
)

var itTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// seedHousehold creates an active unit and household so payment rows satisfy
// their foreign keys.
func seedHousehold(t *testing.T, reg *regstore.PostgresStore) *rmodels.Household {
	t.Helper()
	ctx := context.Background()

	admin, err := rmodels.NewAccount(id.NewAccountID(), "Unit Admin", "ua@example.com", id.RoleUnitAdmin, "springfield", itTime)
	require.NoError(t, err)
	require.NoError(t, reg.CreateAccount(ctx, admin, &rmodels.AdminProfile{
		AccountID: admin.ID, City: "springfield", Status: rmodels.StatusPending, UpdatedAt: itTime,
	}))
	require.NoError(t, reg.ActivateAccount(ctx, admin.ID, id.RoleUnitAdmin, itTime))

	member, err := rmodels.NewAccount(id.NewAccountID(), "Jordan Lee", "jordan@example.com", id.RoleContributor, "", itTime)
	require.NoError(t, err)
	require.NoError(t, reg.CreateAccount(ctx, member, nil))
	require.NoError(t, reg.ActivateAccount(ctx, member.ID, id.RoleContributor, itTime))

	unit, err := rmodels.NewUnit(id.NewUnitID(), "North Unit", "springfield", admin.ID, 12000, itTime)
	require.NoError(t, err)
	require.NoError(t, reg.CreateUnit(ctx, unit))
	require.NoError(t, reg.ActivateUnit(ctx, unit.ID, itTime))

	household, err := rmodels.NewHousehold(id.NewHouseholdID(), unit.ID, member.ID, "Jordan Lee", "jordan@example.com", 12000, itTime)
	require.NoError(t, err)
	require.NoError(t, reg.CreateHousehold(ctx, household))
	require.NoError(t, reg.ActivateHousehold(ctx, household.ID, itTime))
	return household
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	pg := containers.NewPostgresContainer(t)
	store := NewPostgres(pg.DB)
	household := seedHousehold(t, regstore.NewPostgres(pg.DB))
	ctx := context.Background()

	jan := mustPeriod(t, "2026-01")
	feb := mustPeriod(t, "2026-02")
	mar := mustPeriod(t, "2026-03")

	groupA, paymentsA, err := models.NewGroup(household.ID, []id.Period{jan, feb}, 1000, "receipts/a", itTime)
	require.NoError(t, err)
	require.NoError(t, store.CreateGroupWithPayments(ctx, groupA, paymentsA))

	t.Run("live periods cannot be claimed twice", func(t *testing.T) {
		dup, dupPayments, err := models.NewGroup(household.ID, []id.Period{feb}, 1000, "", itTime)
		require.NoError(t, err)
		err = store.CreateGroupWithPayments(ctx, dup, dupPayments)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		claimed, err := store.ClaimedPeriods(ctx, household.ID, []id.Period{feb, mar})
		require.NoError(t, err)
		assert.Equal(t, []id.Period{feb}, claimed)
	})

	t.Run("transition cascades and is single shot", func(t *testing.T) {
		require.NoError(t, store.TransitionGroup(ctx, groupA.ID, models.GroupPaid, "", itTime))

		err := store.TransitionGroup(ctx, groupA.ID, models.GroupRejected, "late", itTime)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		members, err := store.ListGroupPayments(ctx, groupA.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		for _, m := range members {
			assert.Equal(t, models.GroupPaid, m.Status)
		}
	})

	t.Run("rejected periods are reclaimed in place", func(t *testing.T) {
		groupB, paymentsB, err := models.NewGroup(household.ID, []id.Period{mar}, 1000, "", itTime)
		require.NoError(t, err)
		require.NoError(t, store.CreateGroupWithPayments(ctx, groupB, paymentsB))
		require.NoError(t, store.TransitionGroup(ctx, groupB.ID, models.GroupRejected, "unreadable receipt", itTime))

		groupC, paymentsC, err := models.NewGroup(household.ID, []id.Period{mar}, 1000, "receipts/c", itTime)
		require.NoError(t, err)
		require.NoError(t, store.CreateGroupWithPayments(ctx, groupC, paymentsC))

		live, err := store.ListHouseholdPayments(ctx, household.ID)
		require.NoError(t, err)
		require.Len(t, live, 3)
		for _, p := range live {
			if p.Period == mar {
				assert.Equal(t, groupC.ID, p.GroupID)
				assert.Equal(t, models.GroupPending, p.Status)
			}
		}
	})

	t.Run("paid total sums the calendar year", func(t *testing.T) {
		total, err := store.PaidTotal(ctx, household.ID, 2026)
		require.NoError(t, err)
		assert.Equal(t, id.Cents(2000), total)
	})
}
