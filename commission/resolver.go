/*
resolver.go - Rule selection with override precedence

PURPOSE:
  Given a sale context, select the single applicable TotalCommissionRule and
  its linked active DistributionRule. Resolution is a pure function of a rule
  snapshot and the sale context: no mutation, no I/O beyond the store read.

PRECEDENCE (most specific first):
  1. A rule whose product override matches the sale's product id
  2. A rule whose development override matches the sale's development id
  3. A type-level rule with no override

  A rule scoped to a different product or development than the sale's is not
  a candidate at all; it does not fall back to type level.

AMBIGUITY:
  More than one candidate at the winning tier is an authoring error. The
  resolver fails with AmbiguousRule instead of picking one - the same policy
  applies to overlapping validity windows at the same tier. Guessing a
  priority here would silently misallocate money.

SEE ALSO:
  - store.go: Snapshot queries used here
  - service.go: Runs resolution and allocation inside one snapshot
*/
package commission

import (
	"context"
	"sort"
)

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver selects commission rules for sales. It is stateless; the snapshot
// is supplied per call.
type Resolver struct{}

// Resolved is the output of a successful resolution.
type Resolved struct {
	Total        TotalCommissionRule
	Distribution DistributionRule
}

// Resolve selects the applicable rule pair for the sale from the snapshot.
// Returns NoApplicableRule, AmbiguousRule, or MissingDistribution on failure.
func (r *Resolver) Resolve(ctx context.Context, snap Snapshot, sale SaleContext) (*Resolved, error) {
	if err := sale.Validate(); err != nil {
		return nil, err
	}

	rules, err := snap.TotalRulesByProductType(ctx, sale.ProductType)
	if err != nil {
		return nil, err
	}

	// Candidate set: active and in-window on the sale date.
	var candidates []TotalCommissionRule
	for _, rule := range rules {
		if rule.EligibleAt(sale.SaleDate) {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoApplicableRule
	}

	total, err := pickBySpecificity(candidates, sale)
	if err != nil {
		return nil, err
	}

	dist, err := linkedDistribution(ctx, snap, total.ID)
	if err != nil {
		return nil, err
	}

	return &Resolved{Total: *total, Distribution: *dist}, nil
}

// pickBySpecificity walks the precedence tiers and returns the single match
// at the most specific non-empty tier. The result is independent of store
// iteration order: tiers are evaluated strictly in precedence order and ties
// within a tier always fail.
func pickBySpecificity(candidates []TotalCommissionRule, sale SaleContext) (*TotalCommissionRule, error) {
	tiers := []struct {
		name  string
		match func(TotalCommissionRule) bool
	}{
		{"product", func(r TotalCommissionRule) bool {
			return r.ProductID != "" && r.ProductID == sale.ProductID
		}},
		{"development", func(r TotalCommissionRule) bool {
			return r.DevelopmentID != "" && sale.DevelopmentID != "" && r.DevelopmentID == sale.DevelopmentID
		}},
		{"type", func(r TotalCommissionRule) bool {
			return r.ProductID == "" && r.DevelopmentID == ""
		}},
	}

	for _, tier := range tiers {
		var matched []TotalCommissionRule
		for _, rule := range candidates {
			if tier.match(rule) {
				matched = append(matched, rule)
			}
		}
		switch len(matched) {
		case 0:
			continue
		case 1:
			rule := matched[0]
			return &rule, nil
		default:
			return nil, &AmbiguousRuleError{Tier: tier.name, RuleIDs: sortedIDs(matched)}
		}
	}

	// Only rules scoped to other products/developments survived eligibility.
	return nil, ErrNoApplicableRule
}

// linkedDistribution returns the single active distribution linked to the
// total rule: none is MissingDistribution, several is AmbiguousRule.
func linkedDistribution(ctx context.Context, snap Snapshot, totalID RuleID) (*DistributionRule, error) {
	dists, err := snap.DistributionsByTotalRule(ctx, totalID)
	if err != nil {
		return nil, err
	}

	var active []DistributionRule
	for _, d := range dists {
		if d.Status == StatusActive {
			active = append(active, d)
		}
	}
	switch len(active) {
	case 0:
		return nil, ErrMissingDistribution
	case 1:
		dist := active[0]
		return &dist, nil
	default:
		ids := make([]RuleID, len(active))
		for i, d := range active {
			ids[i] = d.ID
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return nil, &AmbiguousRuleError{Tier: "distribution", RuleIDs: ids}
	}
}

// sortedIDs reports tied candidates in a stable order for error messages.
func sortedIDs(rules []TotalCommissionRule) []RuleID {
	ids := make([]RuleID, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
