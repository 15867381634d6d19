/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All failure kinds in one place. Every error here is terminal and
  non-retryable: each one indicates a rules-authoring defect that an
  administrator must fix, not a transient system fault. The service layer
  passes them through verbatim so the operator sees the specific kind.

ERROR CATEGORIES:
  1. Resolution errors - No rule, ambiguous rules, missing distribution
  2. Allocation errors - Obligatory/bounds/total violations
  3. Store errors - Conflicting links, stale writes, invalid rule data

USAGE:
  Callers match with errors.Is:

    if errors.Is(err, commission.ErrUnsatisfiableBounds) {
        // participant configuration problem, not rule-selection problem
    }

SEE ALSO:
  - resolver.go: Raises resolution errors
  - engine.go: Raises allocation errors
  - store.go: Raises store errors
*/
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoApplicableRule is returned when no active total-commission rule
	// matches the sale context.
	ErrNoApplicableRule = errors.New("no applicable commission rule")

	// ErrAmbiguousRule is returned when more than one equally-specific rule
	// (or more than one active distribution) matches. The resolver never
	// guesses between candidates: guessing wrong silently misallocates money.
	ErrAmbiguousRule = errors.New("ambiguous commission rule")

	// ErrMissingDistribution is returned when the resolved total rule has no
	// active linked distribution rule.
	ErrMissingDistribution = errors.New("no active distribution linked to rule")

	// ErrMissingObligatoryParticipant is returned when a required participant
	// is absent or inactive in the distribution.
	ErrMissingObligatoryParticipant = errors.New("obligatory participant missing or inactive")

	// ErrOverAllocated is returned when fixed participants alone exceed 100%.
	ErrOverAllocated = errors.New("fixed shares exceed 100%")

	// ErrUnsatisfiableBounds is returned when proportional scaling cannot
	// honor a variable participant's min/max bound.
	ErrUnsatisfiableBounds = errors.New("scaling violates participant bounds")

	// ErrAllocationMismatch is returned when final percentages do not
	// reconcile to 100% within tolerance.
	ErrAllocationMismatch = errors.New("shares do not reconcile to 100%")

	// ErrConflictingLink is returned when a write would create two active
	// distributions for one total rule.
	ErrConflictingLink = errors.New("conflicting active distribution link")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule is returned when a rule violates a structural invariant.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidSaleContext is returned when a sale context is missing
	// required fields.
	ErrInvalidSaleContext = errors.New("invalid sale context")

	// ErrConcurrentModification is returned when optimistic versioning
	// detects a conflicting concurrent edit.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmbiguousRuleError reports which candidates tied.
type AmbiguousRuleError struct {
	Tier    string // "product", "development", "type", "distribution"
	RuleIDs []RuleID
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous rule at %s tier: %d candidates %v", e.Tier, len(e.RuleIDs), e.RuleIDs)
}

func (e *AmbiguousRuleError) Unwrap() error { return ErrAmbiguousRule }

// ObligatoryParticipantError identifies the role that broke the contract.
type ObligatoryParticipantError struct {
	RuleID RuleID
	Role   Role
}

func (e *ObligatoryParticipantError) Error() string {
	return fmt.Sprintf("obligatory participant %s is inactive in distribution %s", e.Role, e.RuleID)
}

func (e *ObligatoryParticipantError) Unwrap() error { return ErrMissingObligatoryParticipant }

// OverAllocatedError reports the offending fixed total.
type OverAllocatedError struct {
	RuleID     RuleID
	FixedTotal decimal.Decimal
}

func (e *OverAllocatedError) Error() string {
	return fmt.Sprintf("fixed shares in distribution %s total %s%%, over 100%%", e.RuleID, e.FixedTotal)
}

func (e *OverAllocatedError) Unwrap() error { return ErrOverAllocated }

// UnsatisfiableBoundsError reports which participant the scaled share would
// push outside its contractual [min, max] range.
type UnsatisfiableBoundsError struct {
	RuleID RuleID
	Role   Role
	Scaled decimal.Decimal
	Min    *decimal.Decimal
	Max    *decimal.Decimal
}

func (e *UnsatisfiableBoundsError) Error() string {
	bounds := "["
	if e.Min != nil {
		bounds += e.Min.String()
	}
	bounds += ", "
	if e.Max != nil {
		bounds += e.Max.String()
	}
	bounds += "]"
	return fmt.Sprintf("scaled share %s%% for %s is outside bounds %s in distribution %s",
		e.Scaled, e.Role, bounds, e.RuleID)
}

func (e *UnsatisfiableBoundsError) Unwrap() error { return ErrUnsatisfiableBounds }

// AllocationMismatchError reports the reconciliation failure.
type AllocationMismatchError struct {
	RuleID RuleID
	Total  decimal.Decimal
}

func (e *AllocationMismatchError) Error() string {
	return fmt.Sprintf("shares in distribution %s total %s%%, expected 100%%", e.RuleID, e.Total)
}

func (e *AllocationMismatchError) Unwrap() error { return ErrAllocationMismatch }

// ConflictingLinkError reports the distribution already holding the link.
type ConflictingLinkError struct {
	TotalRuleID RuleID
	ExistingID  RuleID
	RejectedID  RuleID
}

func (e *ConflictingLinkError) Error() string {
	return fmt.Sprintf("total rule %s already has active distribution %s; rejecting %s",
		e.TotalRuleID, e.ExistingID, e.RejectedID)
}

func (e *ConflictingLinkError) Unwrap() error { return ErrConflictingLink }

// InvalidRuleError describes a structural invariant violation on a rule.
type InvalidRuleError struct {
	RuleID RuleID
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.RuleID, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error { return ErrInvalidRule }

// InvalidSaleContextError identifies the missing or malformed field.
type InvalidSaleContextError struct {
	Field  string
	Reason string
}

func (e *InvalidSaleContextError) Error() string {
	return fmt.Sprintf("invalid sale context: %s %s", e.Field, e.Reason)
}

func (e *InvalidSaleContextError) Unwrap() error { return ErrInvalidSaleContext }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsResolutionError reports whether the failure came from rule selection
// (fix the rule data) as opposed to participant configuration.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrNoApplicableRule) ||
		errors.Is(err, ErrAmbiguousRule) ||
		errors.Is(err, ErrMissingDistribution)
}

// IsAllocationError reports whether the failure came from participant
// configuration (fix shares, bounds, or obligatory flags).
func IsAllocationError(err error) bool {
	return errors.Is(err, ErrMissingObligatoryParticipant) ||
		errors.Is(err, ErrOverAllocated) ||
		errors.Is(err, ErrUnsatisfiableBounds) ||
		errors.Is(err, ErrAllocationMismatch)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// ErrorCode returns a stable machine-readable code for a failure kind,
// suitable for API responses. Unknown errors map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoApplicableRule):
		return "no_applicable_rule"
	case errors.Is(err, ErrAmbiguousRule):
		return "ambiguous_rule"
	case errors.Is(err, ErrMissingDistribution):
		return "missing_distribution"
	case errors.Is(err, ErrMissingObligatoryParticipant):
		return "missing_obligatory_participant"
	case errors.Is(err, ErrOverAllocated):
		return "over_allocated"
	case errors.Is(err, ErrUnsatisfiableBounds):
		return "unsatisfiable_bounds"
	case errors.Is(err, ErrAllocationMismatch):
		return "allocation_mismatch"
	case errors.Is(err, ErrConflictingLink):
		return "conflicting_link"
	case errors.Is(err, ErrRuleNotFound):
		return "rule_not_found"
	case errors.Is(err, ErrInvalidRule):
		return "invalid_rule"
	case errors.Is(err, ErrInvalidSaleContext):
		return "invalid_sale_context"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return "internal"
	}
}
