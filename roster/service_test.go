package roster_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
	"github.com/warp/payout-engine/roster/store"
	"github.com/warp/payout-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() *roster.Service {
	return roster.NewService(store.NewMemory(), quietLogger())
}

func mustProfile(t *testing.T, svc *roster.Service, in roster.ProfileInput) payout.Profile {
	t.Helper()
	p, err := svc.CreateProfile(context.Background(), in)
	require.NoError(t, err)
	return p
}

// =============================================================================
// PROFILES
// =============================================================================

func TestCreateProfile_AssignsIDs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	agency := mustProfile(t, svc, roster.ProfileInput{Name: "Agency"})

	// WHEN
	p, err := svc.CreateProfile(ctx, roster.ProfileInput{
		Name:           "  Worker ",
		BaseWorkerRate: 20,
		Deductions: []roster.DeductionInput{
			{Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 25, BeneficiaryProfileID: agency.ID},
			{Basis: payout.BasisMargin, Kind: payout.KindFixedAmount, Value: 50, BeneficiaryProfileID: agency.ID},
		},
	})

	// THEN
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Worker", p.Name)
	require.Len(t, p.Deductions, 2)
	assert.NotEmpty(t, p.Deductions[0].ID)
	assert.NotEqual(t, p.Deductions[0].ID, p.Deductions[1].ID)
	assert.Equal(t, payout.BasisMargin, p.Deductions[1].Basis)
}

func TestCreateProfile_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   roster.ProfileInput
	}{
		{"empty name", roster.ProfileInput{Name: "   "}},
		{"unknown basis", roster.ProfileInput{Name: "x", Deductions: []roster.DeductionInput{
			{Basis: "bonus", Kind: payout.KindPercentage, Value: 10},
		}}},
		{"unknown kind", roster.ProfileInput{Name: "x", Deductions: []roster.DeductionInput{
			{Basis: payout.BasisWage, Kind: "ratio", Value: 10},
		}}},
		{"percentage over 100", roster.ProfileInput{Name: "x", Deductions: []roster.DeductionInput{
			{Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 120},
		}}},
		{"duplicate deduction id", roster.ProfileInput{Name: "x", Deductions: []roster.DeductionInput{
			{ID: "d", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 1},
			{ID: "d", Basis: payout.BasisMargin, Kind: payout.KindPercentage, Value: 1},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService().CreateProfile(context.Background(), tt.in)
			assert.ErrorIs(t, err, roster.ErrInvalidProfile)
		})
	}
}

func TestCreateProfile_CoercesNumbers(t *testing.T) {
	svc := newTestService()

	p := mustProfile(t, svc, roster.ProfileInput{
		Name:           "x",
		BaseWorkerRate: math.NaN(),
		Deductions: []roster.DeductionInput{
			{Basis: payout.BasisWage, Kind: payout.KindFixedAmount, Value: -10},
		},
	})

	assert.True(t, p.BaseWorkerRate.IsZero())
	assert.True(t, p.Deductions[0].Value.IsZero())
}

func TestUpdateProfile_RejectsSelfBeneficiary(t *testing.T) {
	svc := newTestService()
	p := mustProfile(t, svc, roster.ProfileInput{Name: "Worker"})

	_, err := svc.UpdateProfile(context.Background(), p.ID, roster.ProfileInput{
		Name: "Worker",
		Deductions: []roster.DeductionInput{
			{Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 10, BeneficiaryProfileID: p.ID},
		},
	})

	assert.ErrorIs(t, err, roster.ErrInvalidProfile)
}

func TestUpdateProfile_PropagatesToPersons(t *testing.T) {
	// GIVEN: a person with one active deduction on a profile
	svc := newTestService()
	ctx := context.Background()
	agency := mustProfile(t, svc, roster.ProfileInput{Name: "Agency"})
	worker := mustProfile(t, svc, roster.ProfileInput{
		Name:           "Worker",
		BaseWorkerRate: 20,
		Deductions: []roster.DeductionInput{
			{ID: "keep", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 10, BeneficiaryProfileID: agency.ID},
			{ID: "drop", Basis: payout.BasisMargin, Kind: payout.KindPercentage, Value: 10, BeneficiaryProfileID: agency.ID},
		},
	})
	person, err := svc.AddPerson(ctx, worker.ID)
	require.NoError(t, err)
	_, err = svc.SetDeductionActive(ctx, person.ID, "keep", true)
	require.NoError(t, err)
	_, err = svc.SetDeductionActive(ctx, person.ID, "drop", true)
	require.NoError(t, err)
	other, err := svc.AddPerson(ctx, agency.ID)
	require.NoError(t, err)

	// WHEN: the profile is renamed, re-rated and loses a deduction
	_, err = svc.UpdateProfile(ctx, worker.ID, roster.ProfileInput{
		Name:           "Senior Worker",
		BaseWorkerRate: 30,
		Deductions: []roster.DeductionInput{
			{ID: "keep", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 10, BeneficiaryProfileID: agency.ID},
		},
	})
	require.NoError(t, err)

	// THEN
	got, err := svc.GetPerson(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, "Senior Worker", got.Name)
	assert.True(t, got.WorkerRate.Equal(payout.FromFloat(30)))
	assert.Equal(t, []string{"keep"}, got.ActiveDeductionIDs)

	untouched, err := svc.GetPerson(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agency", untouched.Name)
}

func TestUpdateProfile_NotFound(t *testing.T) {
	_, err := newTestService().UpdateProfile(context.Background(), "nope", roster.ProfileInput{Name: "x"})
	assert.ErrorIs(t, err, roster.ErrProfileNotFound)
}

func backends() map[string]func(t *testing.T) roster.Store {
	return map[string]func(t *testing.T) roster.Store{
		"memory": func(t *testing.T) roster.Store { return store.NewMemory() },
		"sqlite": func(t *testing.T) roster.Store {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_SavePersonRequiresProfile(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.SaveProfile(ctx, payout.Profile{ID: "p1", Name: "P1"}))

			// WHEN: one person points at a known profile, one at nothing
			require.NoError(t, s.SavePerson(ctx, payout.Person{ID: "a", ProfileID: "p1", Name: "A"}))
			err := s.SavePerson(ctx, payout.Person{ID: "b", ProfileID: "ghost", Name: "B"})

			// THEN: both backends reject the orphan the same way
			assert.ErrorIs(t, err, roster.ErrProfileNotFound)
			persons, err := s.ListPersons(ctx)
			require.NoError(t, err)
			require.Len(t, persons, 1)
			assert.Equal(t, "a", persons[0].ID)
		})
	}
}

func TestDeleteProfile_Cascades(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			// GIVEN: persons on two profiles
			svc := roster.NewService(newStore(t), quietLogger())
			ctx := context.Background()
			a := mustProfile(t, svc, roster.ProfileInput{Name: "A"})
			b := mustProfile(t, svc, roster.ProfileInput{Name: "B"})
			_, err := svc.AddPerson(ctx, a.ID)
			require.NoError(t, err)
			_, err = svc.AddPerson(ctx, a.ID)
			require.NoError(t, err)
			kept, err := svc.AddPerson(ctx, b.ID)
			require.NoError(t, err)

			// WHEN
			require.NoError(t, svc.DeleteProfile(ctx, a.ID))

			// THEN: only B's person is left
			persons, err := svc.ListPersons(ctx)
			require.NoError(t, err)
			require.Len(t, persons, 1)
			assert.Equal(t, kept.ID, persons[0].ID)
		})
	}
}

// =============================================================================
// PERSONS
// =============================================================================

func TestAddPerson_CopiesProfile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProfile(t, svc, roster.ProfileInput{Name: "Worker", BaseWorkerRate: 18.5})

	person, err := svc.AddPerson(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, p.ID, person.ProfileID)
	assert.Equal(t, "Worker", person.Name)
	assert.True(t, person.WorkerRate.Equal(payout.FromFloat(18.5)))
	assert.True(t, person.ClientRate.IsZero())
	assert.Empty(t, person.ActiveDeductionIDs)
}

func TestAddPerson_UnknownProfile(t *testing.T) {
	_, err := newTestService().AddPerson(context.Background(), "nope")
	assert.ErrorIs(t, err, roster.ErrProfileNotFound)
}

func TestUpdateTimeEntry(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProfile(t, svc, roster.ProfileInput{Name: "Worker", BaseWorkerRate: 20})
	person, err := svc.AddPerson(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.UpdateTimeEntry(ctx, person.ID, roster.FieldStart, "09:00")
	require.NoError(t, err)
	_, err = svc.UpdateTimeEntry(ctx, person.ID, roster.FieldPause, "12:00")
	require.NoError(t, err)
	got, err := svc.UpdateTimeEntry(ctx, person.ID, roster.FieldStop, "17:00")
	require.NoError(t, err)

	assert.Equal(t, "12:00", got.TimeEntry.Pause)
	assert.True(t, payout.ResolveHours(got.TimeEntry).Equal(payout.FromFloat(8)))

	// manual hours with a decimal comma
	got, err = svc.UpdateTimeEntry(ctx, person.ID, roster.FieldTotalHours, "5,5")
	require.NoError(t, err)
	assert.True(t, payout.ResolveHours(got.TimeEntry).Equal(payout.FromFloat(5.5)))

	_, err = svc.UpdateTimeEntry(ctx, person.ID, roster.FieldStop, "late")
	assert.ErrorIs(t, err, roster.ErrInvalidPerson)

	_, err = svc.UpdateTimeEntry(ctx, person.ID, "lunch", "12:00")
	assert.ErrorIs(t, err, roster.ErrInvalidPerson)

	_, err = svc.UpdateTimeEntry(ctx, "nope", roster.FieldStart, "09:00")
	assert.ErrorIs(t, err, roster.ErrPersonNotFound)
}

func TestSetDeductionActive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	agency := mustProfile(t, svc, roster.ProfileInput{Name: "Agency"})
	worker := mustProfile(t, svc, roster.ProfileInput{
		Name: "Worker",
		Deductions: []roster.DeductionInput{
			{ID: "d1", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 10, BeneficiaryProfileID: agency.ID},
		},
	})
	person, err := svc.AddPerson(ctx, worker.ID)
	require.NoError(t, err)

	// activating twice keeps set semantics
	_, err = svc.SetDeductionActive(ctx, person.ID, "d1", true)
	require.NoError(t, err)
	got, err := svc.SetDeductionActive(ctx, person.ID, "d1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, got.ActiveDeductionIDs)

	got, err = svc.SetDeductionActive(ctx, person.ID, "d1", false)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveDeductionIDs)

	_, err = svc.SetDeductionActive(ctx, person.ID, "other", true)
	assert.ErrorIs(t, err, roster.ErrDeductionNotFound)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReport_EndToEnd(t *testing.T) {
	// GIVEN: Worker (8h, 20/40) pays 25% of wage to Agency
	svc := newTestService()
	ctx := context.Background()
	agency := mustProfile(t, svc, roster.ProfileInput{Name: "Agency"})
	worker := mustProfile(t, svc, roster.ProfileInput{
		Name:           "Worker",
		BaseWorkerRate: 20,
		Deductions: []roster.DeductionInput{
			{ID: "fee", Basis: payout.BasisWage, Kind: payout.KindPercentage, Value: 25, BeneficiaryProfileID: agency.ID},
		},
	})
	w, err := svc.AddPerson(ctx, worker.ID)
	require.NoError(t, err)
	_, err = svc.AddPerson(ctx, agency.ID)
	require.NoError(t, err)
	_, err = svc.UpdateTimeEntry(ctx, w.ID, roster.FieldTotalHours, "8")
	require.NoError(t, err)
	_, err = svc.SetClientRate(ctx, w.ID, 40)
	require.NoError(t, err)
	_, err = svc.SetDeductionActive(ctx, w.ID, "fee", true)
	require.NoError(t, err)

	// WHEN
	report, err := svc.Report(ctx)
	require.NoError(t, err)
	summary, err := svc.Summary(ctx, w.ID)
	require.NoError(t, err)

	// THEN
	assert.True(t, summary.WageDeductionsTotal.Equal(payout.FromFloat(40)))
	assert.True(t, report.Totals.ClientInvoiceTotal.Equal(payout.FromFloat(320)))
	assert.True(t, report.Totals.TotalDeductions.Equal(payout.FromFloat(40)))
	require.Len(t, report.Payouts, 2)
	assert.Equal(t, agency.ID, report.Payouts[1].ProfileID)
	assert.True(t, report.Payouts[1].Total.Equal(payout.FromFloat(40)))
}

func TestLoad_DropsOrphans(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	err := svc.Load(ctx,
		[]payout.Profile{{ID: "p1", Name: "One"}},
		[]payout.Person{{ID: "a", ProfileID: "p1"}, {ID: "b", ProfileID: "gone"}},
	)
	require.NoError(t, err)

	persons, err := svc.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "a", persons[0].ID)

	require.NoError(t, svc.Reset(ctx))
	profiles, _, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
