package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
	"github.com/warp/payout-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func agencyProfile() payout.Profile {
	return payout.Profile{
		ID:             "agency",
		Name:           "Agency",
		BaseWorkerRate: decimal.RequireFromString("0"),
	}
}

func workerProfile() payout.Profile {
	return payout.Profile{
		ID:             "worker",
		Name:           "Worker",
		BaseWorkerRate: decimal.RequireFromString("22.50"),
		Deductions: []payout.Deduction{
			{ID: "m1", Basis: payout.BasisMargin, Kind: payout.KindFixedAmount, Value: decimal.RequireFromString("12.34"), BeneficiaryProfileID: "agency"},
			{ID: "w1", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: decimal.RequireFromString("7.5"), BeneficiaryProfileID: "agency"},
		},
	}
}

func workerPerson(id string) payout.Person {
	return payout.Person{
		ID:         id,
		ProfileID:  "worker",
		Name:       "Worker " + id,
		WorkerRate: decimal.RequireFromString("22.50"),
		ClientRate: decimal.RequireFromString("41.10"),
		TimeEntry: payout.TimeEntry{
			Start:            "08:30",
			Pause:            "12:00",
			Resume:           "12:30",
			Stop:             "17:00",
			ManualTotalHours: decimal.Zero,
		},
		ActiveDeductionIDs: []string{"w1", "m1"},
	}
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	// GIVEN: a profile with two ordered deductions
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, agencyProfile()))
	require.NoError(t, store.SaveProfile(ctx, workerProfile()))

	// WHEN
	got, err := store.GetProfile(ctx, "worker")
	require.NoError(t, err)

	// THEN: deduction order and exact amounts survive
	require.Len(t, got.Deductions, 2)
	assert.Equal(t, "m1", got.Deductions[0].ID)
	assert.Equal(t, "w1", got.Deductions[1].ID)
	assert.True(t, got.Deductions[0].Value.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, payout.KindPercentage, got.Deductions[1].Kind)
	assert.True(t, got.BaseWorkerRate.Equal(decimal.RequireFromString("22.5")))
}

func TestStore_UpdateKeepsInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, agencyProfile()))
	require.NoError(t, store.SaveProfile(ctx, workerProfile()))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SavePerson(ctx, workerPerson(id)))
	}

	// WHEN: the first of each collection is updated
	renamed := agencyProfile()
	renamed.Name = "Agency BV"
	require.NoError(t, store.SaveProfile(ctx, renamed))

	first := workerPerson("a")
	first.ClientRate = decimal.RequireFromString("50")
	require.NoError(t, store.SavePerson(ctx, first))

	// THEN: they stay first
	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Agency BV", profiles[0].Name)
	assert.Equal(t, "worker", profiles[1].ID)

	persons, err := store.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{persons[0].ID, persons[1].ID, persons[2].ID})
	assert.True(t, persons[0].ClientRate.Equal(decimal.NewFromInt(50)))
}

func TestStore_PersonRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, agencyProfile()))
	require.NoError(t, store.SaveProfile(ctx, workerProfile()))
	require.NoError(t, store.SavePerson(ctx, workerPerson("a")))

	got, err := store.GetPerson(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, "12:30", got.TimeEntry.Resume)
	assert.Equal(t, []string{"w1", "m1"}, got.ActiveDeductionIDs)
	assert.True(t, got.ClientRate.Equal(decimal.RequireFromString("41.1")))

	// and the engine sees the same numbers as before the round trip
	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	want := payout.ComputeFinancialSummary(workerPerson("a"), []payout.Profile{agencyProfile(), workerProfile()})
	have := payout.ComputeFinancialSummary(got, profiles)
	assert.True(t, want.NetMargin.Equal(have.NetMargin))
}

func TestStore_DeleteProfileCascades(t *testing.T) {
	// GIVEN: two persons bound to "worker"
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, agencyProfile()))
	require.NoError(t, store.SaveProfile(ctx, workerProfile()))
	require.NoError(t, store.SavePerson(ctx, workerPerson("a")))
	require.NoError(t, store.SavePerson(ctx, workerPerson("b")))

	// WHEN
	require.NoError(t, store.DeleteProfile(ctx, "worker"))

	// THEN
	persons, err := store.ListPersons(ctx)
	require.NoError(t, err)
	assert.Empty(t, persons)

	_, err = store.GetPerson(ctx, "a")
	assert.ErrorIs(t, err, roster.ErrPersonNotFound)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "nope")
	assert.ErrorIs(t, err, roster.ErrProfileNotFound)

	assert.ErrorIs(t, store.DeleteProfile(ctx, "nope"), roster.ErrProfileNotFound)
	assert.ErrorIs(t, store.DeletePerson(ctx, "nope"), roster.ErrPersonNotFound)
}

func TestStore_Replace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, agencyProfile()))

	// WHEN: the workspace is replaced wholesale
	err := store.Replace(ctx,
		[]payout.Profile{workerProfile(), agencyProfile()},
		[]payout.Person{workerPerson("z"), workerPerson("y")},
	)
	require.NoError(t, err)

	// THEN: the new order is the given order
	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "worker", profiles[0].ID)

	persons, err := store.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "z", persons[0].ID)
}
