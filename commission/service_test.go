package commission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/imovia/commission-engine/commission"
)

// =============================================================================
// END-TO-END COMPUTATION
// =============================================================================

func TestComputeCommission_StandardSale(t *testing.T) {
	// GIVEN: The standard 5% unit rule with a 10/50/20/20 split
	// WHEN: Computing commission on a R$500,000 sale
	// THEN: R$25,000 is retained and split 2,500/12,500/5,000/5,000

	s := seededStore(t,
		[]commission.TotalCommissionRule{totalRule("unit-default", "5")},
		[]commission.DistributionRule{validDistribution()})

	svc := commission.NewService(s)
	result, err := svc.ComputeCommission(context.Background(), unitSale("unit-101", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.RetainedAmount.Equal(brl("25000")) {
		t.Errorf("expected R$25,000 retained, got %s", result.RetainedAmount)
	}
	if result.TotalRuleID != "unit-default" {
		t.Errorf("result should carry the total rule id, got %s", result.TotalRuleID)
	}
	if result.DistributionRuleID != "unit-default-split" {
		t.Errorf("result should carry the distribution rule id, got %s", result.DistributionRuleID)
	}
	assertLine(t, result.Lines[0], commission.RoleAgency, "2500")
	assertLine(t, result.Lines[1], commission.RoleLeadBroker, "12500")
	assertLine(t, result.Lines[2], commission.RoleSupportBroker, "5000")
	assertLine(t, result.Lines[3], commission.RoleCoordinator, "5000")
}

func TestComputeCommission_RetainedAmountRoundsToCents(t *testing.T) {
	// 5% of R$123,456.79 is R$6,172.8395, which must round to R$6,172.84
	// before the split.
	s := seededStore(t,
		[]commission.TotalCommissionRule{totalRule("unit-default", "5")},
		[]commission.DistributionRule{validDistribution()})

	svc := commission.NewService(s)
	sale := unitSale("unit-101", "")
	sale.SaleValue = brl("123456.79")

	result, err := svc.ComputeCommission(context.Background(), sale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.RetainedAmount.Equal(brl("6172.84")) {
		t.Errorf("expected R$6,172.84 retained, got %s", result.RetainedAmount)
	}
	if !result.Total().Equal(result.RetainedAmount) {
		t.Errorf("lines must sum to retained amount, got %s", result.Total())
	}
}

// =============================================================================
// FAILURE PASS-THROUGH
// =============================================================================

func TestComputeCommission_ErrorsPassThroughVerbatim(t *testing.T) {
	// Every failure kind from resolution or allocation surfaces unchanged;
	// the service never retries or translates.

	boundedSplit := validDistribution()
	boundedSplit.ID = "bounded-split"
	boundedSplit.Participants = []commission.Participant{
		{Role: commission.RoleAgency, Percent: d("10"), Active: true, Fixed: true},
		{Role: commission.RoleReferrer, Percent: d("20"), Active: true, Fixed: true},
		{Role: commission.RoleLeadBroker, Percent: d("50"), Active: true, Max: dp("60")},
		{Role: commission.RoleSupportBroker, Percent: d("20"), Active: false},
	}

	cases := []struct {
		name    string
		totals  []commission.TotalCommissionRule
		dists   []commission.DistributionRule
		sale    commission.SaleContext
		wantErr error
	}{
		{
			name:    "no applicable rule",
			sale:    unitSale("unit-101", ""),
			wantErr: commission.ErrNoApplicableRule,
		},
		{
			name:    "ambiguous tie",
			totals:  []commission.TotalCommissionRule{totalRule("rule-a", "5"), totalRule("rule-b", "4")},
			dists:   []commission.DistributionRule{splitFor("rule-a"), splitFor("rule-b")},
			sale:    unitSale("unit-101", ""),
			wantErr: commission.ErrAmbiguousRule,
		},
		{
			name:    "missing distribution",
			totals:  []commission.TotalCommissionRule{totalRule("unit-default", "5")},
			sale:    unitSale("unit-101", ""),
			wantErr: commission.ErrMissingDistribution,
		},
		{
			name:    "unsatisfiable bounds",
			totals:  []commission.TotalCommissionRule{totalRule("unit-default", "5")},
			dists:   []commission.DistributionRule{boundedSplit},
			sale:    unitSale("unit-101", ""),
			wantErr: commission.ErrUnsatisfiableBounds,
		},
		{
			name:    "invalid sale context",
			totals:  []commission.TotalCommissionRule{totalRule("unit-default", "5")},
			dists:   []commission.DistributionRule{validDistribution()},
			sale:    commission.SaleContext{ProductType: commission.ProductUnit},
			wantErr: commission.ErrInvalidSaleContext,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := seededStore(t, tc.totals, tc.dists)
			svc := commission.NewService(s)

			_, err := svc.ComputeCommission(context.Background(), tc.sale)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// =============================================================================
// SNAPSHOT CONSISTENCY
// =============================================================================

func TestComputeCommission_ReadsOneSnapshot(t *testing.T) {
	// Resolution and allocation run inside a single View, so a concurrent
	// rule edit either lands entirely before or entirely after a computation.
	// Hammer compute while flipping the distribution between two valid
	// shapes; every successful result must match one of them exactly.

	ctx := context.Background()
	s := seededStore(t,
		[]commission.TotalCommissionRule{totalRule("unit-default", "5")},
		[]commission.DistributionRule{validDistribution()})
	svc := commission.NewService(s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			rule, err := s.DistributionRule(ctx, "unit-default-split")
			if err != nil {
				return
			}
			if i%2 == 0 {
				rule.Participants = []commission.Participant{
					{Role: commission.RoleLeadBroker, Percent: d("100"), Active: true},
				}
			} else {
				rule.Participants = validDistribution().Participants
			}
			if err := s.SaveDistributionRule(ctx, *rule); err != nil {
				return
			}
		}
	}()

	sale := unitSale("unit-101", "")
	for i := 0; i < 200; i++ {
		result, err := svc.ComputeCommission(ctx, sale)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		switch len(result.Lines) {
		case 1:
			assertLine(t, result.Lines[0], commission.RoleLeadBroker, "25000")
		case 4:
			if !result.Total().Equal(brl("25000")) {
				t.Fatalf("iteration %d: torn split observed: %s", i, result.Total())
			}
		default:
			t.Fatalf("iteration %d: observed half-applied rule with %d lines", i, len(result.Lines))
		}
	}
	<-done
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_ResolvesWithoutAmounts(t *testing.T) {
	dev := totalRule("horizonte-premium", "6")
	dev.DevelopmentID = "dev-horizonte"

	s := seededStore(t,
		[]commission.TotalCommissionRule{totalRule("unit-default", "5"), dev},
		[]commission.DistributionRule{splitFor("unit-default"), splitFor("horizonte-premium")})

	svc := commission.NewService(s)
	resolved, err := svc.Preview(context.Background(), unitSale("unit-101", "dev-horizonte"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Total.ID != "horizonte-premium" {
		t.Errorf("expected horizonte-premium, got %s", resolved.Total.ID)
	}
	if resolved.Distribution.ID != "horizonte-premium-split" {
		t.Errorf("expected horizonte-premium-split, got %s", resolved.Distribution.ID)
	}
}

// Guard against the memory store handing out shared state: mutating a
// computed result must not corrupt later computations.
func TestComputeCommission_ResultIsolation(t *testing.T) {
	s := seededStore(t,
		[]commission.TotalCommissionRule{totalRule("unit-default", "5")},
		[]commission.DistributionRule{validDistribution()})
	svc := commission.NewService(s)

	first, err := svc.ComputeCommission(context.Background(), unitSale("unit-101", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Lines[0].Amount = brl("999999")
	first.Lines[0].Percent = d("99")

	second, err := svc.ComputeCommission(context.Background(), unitSale("unit-101", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLine(t, second.Lines[0], commission.RoleAgency, "2500")
}
