/*
service.go - Commission computation entry point

PURPOSE:
  The one component external collaborators call. Orchestrates resolution
  then allocation for a sale, inside a single rule snapshot so a total rule
  update is never observed without its matching distribution update.

FAILURE POLICY:
  Pure pass-through. Every failure kind from the resolver or the engine is
  returned unchanged - no translation, no suppression, no retries. These
  failures mean an administrator has to fix rule data; retrying computes
  the same wrong answer faster.

SEE ALSO:
  - resolver.go: Rule selection
  - engine.go: Payout computation
*/
package commission

import "context"

// =============================================================================
// COMMISSION SERVICE
// =============================================================================

// Service computes finalized commission breakdowns for sales.
type Service struct {
	store    RuleStore
	resolver Resolver
	engine   AllocationEngine
}

// NewService creates a commission service over the given rule store.
func NewService(store RuleStore) *Service {
	return &Service{store: store}
}

// ComputeCommission resolves the applicable rules for the sale and computes
// the allocation breakdown. The retained amount is
// sale value x retained percentage / 100, rounded to the cent.
func (s *Service) ComputeCommission(ctx context.Context, sale SaleContext) (*AllocationResult, error) {
	if err := sale.Validate(); err != nil {
		return nil, err
	}

	var result *AllocationResult
	err := s.store.View(ctx, func(snap Snapshot) error {
		resolved, err := s.resolver.Resolve(ctx, snap, sale)
		if err != nil {
			return err
		}

		retained := sale.SaleValue.Percentage(resolved.Total.Percent).RoundToCents()

		allocation, err := s.engine.Allocate(resolved.Distribution, retained)
		if err != nil {
			return err
		}

		allocation.TotalRuleID = resolved.Total.ID
		result = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Preview resolves the rules for a sale without computing amounts. Useful
// for the authoring UI to show which rules a hypothetical sale would hit.
func (s *Service) Preview(ctx context.Context, sale SaleContext) (*Resolved, error) {
	var resolved *Resolved
	err := s.store.View(ctx, func(snap Snapshot) error {
		r, err := s.resolver.Resolve(ctx, snap, sale)
		if err != nil {
			return err
		}
		resolved = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}
