package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imovia/commission-engine/commission"
	"github.com/imovia/commission-engine/store/sqlite"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func windowedTotal(id string) commission.TotalCommissionRule {
	min := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	return commission.TotalCommissionRule{
		ID:            commission.RuleID(id),
		Name:          "Windowed retention",
		Description:   "Launch-year pricing",
		ProductType:   commission.ProductUnit,
		Percent:       d("5.5"),
		Status:        commission.StatusActive,
		Window:        &commission.ValidityWindow{Start: min, End: max},
		DevelopmentID: "dev-horizonte",
	}
}

func fullDist(id, totalID string) commission.DistributionRule {
	leadMin := d("30")
	leadMax := d("70")
	return commission.DistributionRule{
		ID:          commission.RuleID(id),
		Name:        "Full split",
		TotalRuleID: commission.RuleID(totalID),
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: d("10"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleLeadBroker, Percent: d("50"), Active: true, Min: &leadMin, Max: &leadMax},
			{Role: commission.RoleGroup, Percent: d("40"), Active: true, GroupID: "team-centro"},
		},
	}
}

// =============================================================================
// PERSISTENCE ROUND TRIPS
// =============================================================================

func TestSQLite_TotalRuleRoundTrip(t *testing.T) {
	// Every field, including the validity window and the override scope,
	// must survive the trip through the schema.
	ctx := context.Background()
	s := newTestStore(t)

	original := windowedTotal("t1")
	require.NoError(t, s.SaveTotalRule(ctx, original))

	loaded, err := s.TotalRule(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, original.Name, loaded.Name)
	assert.Equal(t, original.Description, loaded.Description)
	assert.Equal(t, original.ProductType, loaded.ProductType)
	assert.True(t, loaded.Percent.Equal(d("5.5")))
	assert.Equal(t, original.DevelopmentID, loaded.DevelopmentID)
	assert.Equal(t, 1, loaded.Version)
	require.NotNil(t, loaded.Window)
	assert.True(t, loaded.Window.Contains(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, loaded.Window.Contains(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSQLite_DistributionRoundTrip(t *testing.T) {
	// Participants travel through JSON; bounds, flags, and order must hold.
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTotalRule(ctx, windowedTotal("t1")))
	require.NoError(t, s.SaveDistributionRule(ctx, fullDist("d1", "t1")))

	loaded, err := s.DistributionRule(ctx, "d1")
	require.NoError(t, err)

	require.Len(t, loaded.Participants, 3)
	lead := loaded.Participants[1]
	assert.Equal(t, commission.RoleLeadBroker, lead.Role)
	require.NotNil(t, lead.Min)
	require.NotNil(t, lead.Max)
	assert.True(t, lead.Min.Equal(d("30")))
	assert.True(t, lead.Max.Equal(d("70")))
	assert.True(t, loaded.Participants[0].Obligatory)
	assert.Equal(t, commission.GroupID("team-centro"), loaded.Participants[2].GroupID)
}

// =============================================================================
// WRITE-PATH INVARIANTS
// =============================================================================

func TestSQLite_OptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTotalRule(ctx, windowedTotal("t1")))

	stale := windowedTotal("t1") // version 0 again
	err := s.SaveTotalRule(ctx, stale)
	assert.ErrorIs(t, err, commission.ErrConcurrentModification)

	current, err := s.TotalRule(ctx, "t1")
	require.NoError(t, err)
	current.Percent = d("6")
	require.NoError(t, s.SaveTotalRule(ctx, *current))

	updated, err := s.TotalRule(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.Percent.Equal(d("6")))
}

func TestSQLite_SecondActiveLinkRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTotalRule(ctx, windowedTotal("t1")))
	require.NoError(t, s.SaveDistributionRule(ctx, fullDist("d1", "t1")))

	err := s.SaveDistributionRule(ctx, fullDist("d2", "t1"))
	require.ErrorIs(t, err, commission.ErrConflictingLink)

	var conflict *commission.ConflictingLinkError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, commission.RuleID("d1"), conflict.ExistingID)
}

func TestSQLite_DistributionRequiresExistingTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.SaveDistributionRule(ctx, fullDist("d1", "missing"))
	assert.ErrorIs(t, err, commission.ErrRuleNotFound)
}

// =============================================================================
// SNAPSHOT VIEWS
// =============================================================================

func TestSQLite_ViewSeesConsistentPair(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTotalRule(ctx, windowedTotal("t1")))
	require.NoError(t, s.SaveDistributionRule(ctx, fullDist("d1", "t1")))

	err := s.View(ctx, func(snap commission.Snapshot) error {
		totals, err := snap.TotalRulesByProductType(ctx, commission.ProductUnit)
		require.NoError(t, err)
		require.Len(t, totals, 1)

		dists, err := snap.DistributionsByTotalRule(ctx, totals[0].ID)
		require.NoError(t, err)
		require.Len(t, dists, 1)
		assert.Equal(t, totals[0].ID, dists[0].TotalRuleID)
		return nil
	})
	assert.NoError(t, err)
}

// =============================================================================
// ALLOCATION RECORDS
// =============================================================================

func TestSQLite_AllocationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sqlite.AllocationRecord{
		ID: "alloc-1",
		Sale: commission.SaleContext{
			ProductType:   commission.ProductUnit,
			ProductID:     "unit-101",
			DevelopmentID: "dev-horizonte",
			SaleDate:      time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
			SaleValue:     commission.Money{Value: d("500000"), Currency: commission.CurrencyBRL},
		},
		Result: commission.AllocationResult{
			TotalRuleID:        "t1",
			DistributionRuleID: "d1",
			RetainedAmount:     commission.Money{Value: d("25000"), Currency: commission.CurrencyBRL},
			Lines: []commission.AllocationLine{
				{Role: commission.RoleAgency, Percent: d("10"), Amount: commission.Money{Value: d("2500"), Currency: commission.CurrencyBRL}},
				{Role: commission.RoleLeadBroker, Percent: d("90"), Amount: commission.Money{Value: d("22500"), Currency: commission.CurrencyBRL}},
			},
		},
	}
	require.NoError(t, s.SaveAllocation(ctx, rec))

	records, err := s.ListAllocations(ctx, "unit-101")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "alloc-1", got.ID)
	assert.Equal(t, commission.RuleID("t1"), got.Result.TotalRuleID)
	assert.True(t, got.Result.RetainedAmount.Equal(rec.Result.RetainedAmount))
	require.Len(t, got.Result.Lines, 2)
	assert.True(t, got.Result.Lines[1].Amount.Value.Equal(d("22500")))
	assert.Equal(t, "unit-101", got.Sale.ProductID)

	// Filter miss
	none, err := s.ListAllocations(ctx, "unit-999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTotalRule(ctx, windowedTotal("t1")))
	require.NoError(t, s.SaveDistributionRule(ctx, fullDist("d1", "t1")))
	require.NoError(t, s.Reset(ctx))

	totals, err := s.ListTotalRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, totals)

	dists, err := s.ListDistributionRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, dists)
}
