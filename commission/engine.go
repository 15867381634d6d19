/*
engine.go - Percentage scaling and monetary allocation

PURPOSE:
  Turns a DistributionRule and a retained amount into per-participant
  payouts. This is where the fixed/variable/min/max/obligatory constraints
  are enforced and where every cent is accounted for.

ALGORITHM:
  1. Drop inactive participants; an inactive obligatory participant fails
     the whole allocation.
  2. Partition into fixed and variable shares. Fixed shares are taken
     verbatim; together they may not exceed 100%.
  3. Whatever the fixed shares leave over must be covered by the variable
     shares. If the nominal variable shares do not sum to the leftover,
     they are scaled proportionally to close the gap.
  4. Scaling must honor each variable participant's [min, max] bound. A
     share that scaling would push outside its bound fails the allocation -
     the bound is a contractual business constraint, never silently clamped.
  5. Re-check that all shares reconcile to 100% within 0.01 percentage
     points.
  6. Convert shares to money, rounding each line to the cent (half-up) and
     assigning the rounding residual to the largest share, so the lines sum
     exactly to the retained amount.

  Allocation is all-or-nothing: no partial result is ever returned.

DETERMINISM:
  All arithmetic is decimal; participant order is preserved; the residual
  tie-break is "first largest share in list order". Two calls with the same
  inputs produce byte-identical results.

SEE ALSO:
  - rules.go: Participant semantics
  - service.go: Computes the retained amount fed in here
*/
package commission

import (
	"github.com/shopspring/decimal"
)

// shareTolerance is how far the reconciled share total may drift from 100%,
// in percentage points. Covers decimal division truncation, nothing more.
var shareTolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

// AllocationEngine computes participant payouts. It is stateless and safe
// for concurrent use.
type AllocationEngine struct{}

// Allocate computes the payout breakdown of retained across the rule's
// participants. The returned result carries the distribution rule id; the
// caller (the commission service) stamps the total rule id it resolved.
func (e *AllocationEngine) Allocate(rule DistributionRule, retained Money) (*AllocationResult, error) {
	// An obligatory participant that was deactivated breaks the distribution
	// contract outright, whether or not the remaining shares would reconcile.
	for _, p := range rule.Participants {
		if p.Obligatory && !p.Active {
			return nil, &ObligatoryParticipantError{RuleID: rule.ID, Role: p.Role}
		}
	}

	active := rule.ActiveParticipants()
	if len(active) == 0 {
		return nil, &AllocationMismatchError{RuleID: rule.ID, Total: decimal.Zero}
	}

	shares, err := e.reconcileShares(rule, active)
	if err != nil {
		return nil, err
	}

	lines := e.toMoney(active, shares, retained)

	return &AllocationResult{
		DistributionRuleID: rule.ID,
		RetainedAmount:     retained,
		Lines:              lines,
	}, nil
}

// reconcileShares returns the effective percentage for each active
// participant, in order, such that the shares total 100%.
func (e *AllocationEngine) reconcileShares(rule DistributionRule, active []Participant) ([]decimal.Decimal, error) {
	fixedTotal := decimal.Zero
	nominalVariable := decimal.Zero
	for _, p := range active {
		if p.Fixed {
			fixedTotal = fixedTotal.Add(p.Percent)
		} else {
			nominalVariable = nominalVariable.Add(p.Percent)
		}
	}

	if fixedTotal.GreaterThan(oneHundred) {
		return nil, &OverAllocatedError{RuleID: rule.ID, FixedTotal: fixedTotal}
	}

	remaining := oneHundred.Sub(fixedTotal)

	// Proportional scale factor for variable shares. When the nominal shares
	// already sum to the leftover this is exactly 1 and shares pass through
	// unchanged.
	var factor decimal.Decimal
	switch {
	case nominalVariable.IsPositive():
		factor = remaining.Div(nominalVariable)
	case remaining.Abs().LessThanOrEqual(shareTolerance):
		factor = decimal.Zero // nothing left to distribute, nothing to scale
	default:
		// Leftover exists but no variable share can absorb it.
		return nil, &AllocationMismatchError{RuleID: rule.ID, Total: fixedTotal}
	}

	shares := make([]decimal.Decimal, len(active))
	total := decimal.Zero
	for i, p := range active {
		if p.Fixed {
			shares[i] = p.Percent
		} else {
			scaled := p.Percent.Mul(factor)
			if p.Min != nil && scaled.LessThan(*p.Min) {
				return nil, &UnsatisfiableBoundsError{RuleID: rule.ID, Role: p.Role, Scaled: scaled, Min: p.Min, Max: p.Max}
			}
			if p.Max != nil && scaled.GreaterThan(*p.Max) {
				return nil, &UnsatisfiableBoundsError{RuleID: rule.ID, Role: p.Role, Scaled: scaled, Min: p.Min, Max: p.Max}
			}
			shares[i] = scaled
		}
		total = total.Add(shares[i])
	}

	if total.Sub(oneHundred).Abs().GreaterThan(shareTolerance) {
		return nil, &AllocationMismatchError{RuleID: rule.ID, Total: total}
	}

	return shares, nil
}

// toMoney converts percentage shares to rounded monetary lines that sum
// exactly to retained. The rounding residual (at most a few cents) goes to
// the first participant holding the largest share.
func (e *AllocationEngine) toMoney(active []Participant, shares []decimal.Decimal, retained Money) []AllocationLine {
	lines := make([]AllocationLine, len(active))
	allocated := retained.Zero()
	largest := 0
	for i, p := range active {
		amount := retained.Percentage(shares[i]).RoundToCents()
		lines[i] = AllocationLine{
			Role:    p.Role,
			GroupID: p.GroupID,
			Percent: shares[i],
			Amount:  amount,
		}
		allocated = allocated.Add(amount)
		if shares[i].GreaterThan(shares[largest]) {
			largest = i
		}
	}

	residual := retained.Sub(allocated)
	if !residual.IsZero() {
		lines[largest].Amount = lines[largest].Amount.Add(residual)
	}

	return lines
}
