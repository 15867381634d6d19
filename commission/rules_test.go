package commission_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imovia/commission-engine/commission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func brl(s string) commission.Money {
	return commission.Money{Value: d(s), Currency: commission.CurrencyBRL}
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func validTotalRule() commission.TotalCommissionRule {
	return commission.TotalCommissionRule{
		ID:          "unit-default",
		Name:        "Default unit retention",
		ProductType: commission.ProductUnit,
		Percent:     d("5"),
		Status:      commission.StatusActive,
	}
}

func validDistribution() commission.DistributionRule {
	return commission.DistributionRule{
		ID:          "unit-default-split",
		Name:        "Default unit split",
		TotalRuleID: "unit-default",
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: d("10"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleLeadBroker, Percent: d("50"), Active: true},
			{Role: commission.RoleSupportBroker, Percent: d("20"), Active: true},
			{Role: commission.RoleCoordinator, Percent: d("20"), Active: true},
		},
	}
}

// =============================================================================
// TOTAL RULE VALIDATION
// =============================================================================

func TestTotalRule_Valid(t *testing.T) {
	if err := validTotalRule().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTotalRule_PercentOutOfRange(t *testing.T) {
	// GIVEN: Rules with retention below 0% and above 100%
	// THEN: Both are structurally invalid

	for _, pct := range []string{"-1", "100.01"} {
		rule := validTotalRule()
		rule.Percent = d(pct)
		if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
			t.Errorf("percent %s: expected ErrInvalidRule, got %v", pct, err)
		}
	}
}

func TestTotalRule_BothOverridesRejected(t *testing.T) {
	// GIVEN: A rule carrying both a product and a development override
	// THEN: Validation fails; a rule targets at most one override level

	rule := validTotalRule()
	rule.ProductID = "unit-101"
	rule.DevelopmentID = "dev-horizonte"

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestTotalRule_InvertedWindowRejected(t *testing.T) {
	rule := validTotalRule()
	rule.Window = &commission.ValidityWindow{
		Start: date(2026, time.June, 1),
		End:   date(2026, time.January, 1),
	}

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestTotalRule_EligibleAt(t *testing.T) {
	// GIVEN: An active rule valid through Q1 2026
	rule := validTotalRule()
	rule.Window = &commission.ValidityWindow{
		Start: date(2026, time.January, 1),
		End:   date(2026, time.March, 31),
	}

	// THEN: Window bounds are inclusive on both ends
	if !rule.EligibleAt(date(2026, time.January, 1)) {
		t.Error("start date should be eligible")
	}
	if !rule.EligibleAt(date(2026, time.March, 31)) {
		t.Error("end date should be eligible")
	}
	if rule.EligibleAt(date(2026, time.April, 1)) {
		t.Error("day after end should not be eligible")
	}

	// AND: An inactive rule is never eligible, window or not
	rule.Status = commission.StatusInactive
	if rule.EligibleAt(date(2026, time.February, 1)) {
		t.Error("inactive rule should not be eligible")
	}
}

func TestTotalRule_NilWindowAlwaysValid(t *testing.T) {
	rule := validTotalRule()
	if !rule.EligibleAt(date(1990, time.January, 1)) || !rule.EligibleAt(date(2090, time.January, 1)) {
		t.Error("rule without window should be eligible on any date")
	}
}

// =============================================================================
// DISTRIBUTION RULE VALIDATION
// =============================================================================

func TestDistribution_Valid(t *testing.T) {
	if err := validDistribution().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDistribution_RequiresParticipants(t *testing.T) {
	rule := validDistribution()
	rule.Participants = nil

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestDistribution_RequiresTotalRuleLink(t *testing.T) {
	rule := validDistribution()
	rule.TotalRuleID = ""

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestParticipant_GroupRequiresGroupID(t *testing.T) {
	rule := validDistribution()
	rule.Participants = append(rule.Participants,
		commission.Participant{Role: commission.RoleGroup, Percent: d("5"), Active: true})

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestParticipant_NominalShareMustRespectBounds(t *testing.T) {
	// GIVEN: A variable participant whose nominal share sits below its min
	rule := validDistribution()
	rule.Participants[1].Min = dp("60")

	// THEN: The rule cannot be authored at all
	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestParticipant_BoundsIgnoredForFixedShares(t *testing.T) {
	// Fixed shares are taken verbatim, so bounds never constrain them.
	rule := validDistribution()
	rule.Participants[0].Min = dp("50") // agency fixed at 10

	if err := rule.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParticipant_InvertedBoundsRejected(t *testing.T) {
	rule := validDistribution()
	rule.Participants[1].Min = dp("40")
	rule.Participants[1].Max = dp("30")
	rule.Participants[1].Percent = d("35")

	if err := rule.Validate(); !errors.Is(err, commission.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestActiveParticipants_PreservesOrder(t *testing.T) {
	rule := validDistribution()
	rule.Participants[2].Active = false

	active := rule.ActiveParticipants()
	if len(active) != 3 {
		t.Fatalf("expected 3 active participants, got %d", len(active))
	}
	want := []commission.Role{commission.RoleAgency, commission.RoleLeadBroker, commission.RoleCoordinator}
	for i, role := range want {
		if active[i].Role != role {
			t.Errorf("position %d: expected %s, got %s", i, role, active[i].Role)
		}
	}
}

// =============================================================================
// SALE CONTEXT VALIDATION
// =============================================================================

func TestSaleContext_MissingFieldsFailFast(t *testing.T) {
	// A sale with missing data must fail, never resolve against defaults.
	cases := []struct {
		name string
		sale commission.SaleContext
	}{
		{"unknown product type", commission.SaleContext{
			ProductType: "apartment", ProductID: "unit-1",
			SaleDate: date(2026, time.March, 1), SaleValue: brl("100"),
		}},
		{"missing product id", commission.SaleContext{
			ProductType: commission.ProductUnit,
			SaleDate:    date(2026, time.March, 1), SaleValue: brl("100"),
		}},
		{"missing sale date", commission.SaleContext{
			ProductType: commission.ProductUnit, ProductID: "unit-1",
			SaleValue: brl("100"),
		}},
		{"negative sale value", commission.SaleContext{
			ProductType: commission.ProductUnit, ProductID: "unit-1",
			SaleDate: date(2026, time.March, 1), SaleValue: brl("-1"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.sale.Validate(); !errors.Is(err, commission.ErrInvalidSaleContext) {
				t.Fatalf("expected ErrInvalidSaleContext, got %v", err)
			}
		})
	}
}
