/*
rules.go - Rule definitions: the tagged union of commission rule kinds

PURPOSE:
  Defines the two rule kinds as explicit, distinct types:
  - TotalCommissionRule: what percentage of a sale the agency retains
  - DistributionRule: how a retained amount is split among participants

  The original back office represented both as loosely-typed records
  distinguished by which fields happened to be present. Here they are
  separate structs with a Role enumeration, so the resolver and engine
  match on type instead of probing fields.

OVERRIDE SCOPES:
  A TotalCommissionRule applies at exactly one of three scopes:
  - product override:     targets one specific product id
  - development override: targets every product in one development
  - type level:           targets a whole product type
  A rule carrying both a product and a development override is invalid.

PARTICIPANTS:
  Participants are value objects nested in their DistributionRule. A fixed
  participant's share is taken verbatim; a variable participant's share may
  be scaled within its [min, max] bounds to make the total reconcile to 100%.
  An obligatory participant must be present and active or allocation fails.

SEE ALSO:
  - resolver.go: Selects rules by precedence
  - engine.go: Consumes DistributionRule participants
  - store.go: Persists and re-validates rules as the final authority
*/
package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARTICIPANT ROLES
// =============================================================================

type Role string

const (
	RoleAgency        Role = "agency"
	RoleLeadBroker    Role = "lead_broker"
	RoleSupportBroker Role = "support_broker"
	RoleCoordinator   Role = "coordinator"
	RoleGroup         Role = "group"
	RoleReferrer      Role = "referrer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAgency, RoleLeadBroker, RoleSupportBroker, RoleCoordinator, RoleGroup, RoleReferrer:
		return true
	}
	return false
}

// =============================================================================
// TOTAL COMMISSION RULE - Agency-level retention percentage
// =============================================================================

// TotalCommissionRule states what percentage of a sale the agency retains.
// Rules are authored by administrators and are read-only inputs to the
// allocation process.
type TotalCommissionRule struct {
	ID          RuleID
	Name        string
	Description string
	ProductType ProductType
	Percent     decimal.Decimal // retained percentage, 0-100
	Status      RuleStatus
	Window      *ValidityWindow // nil = always valid

	// Scope overrides. At most one may be set.
	DevelopmentID string
	ProductID     string

	// Optimistic versioning for the authoring write path.
	Version int
}

// Validate enforces the structural invariants of §rule authoring.
func (r TotalCommissionRule) Validate() error {
	if r.ID == "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "id is required"}
	}
	if r.Name == "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "name is required"}
	}
	if !r.ProductType.Valid() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "unknown product type"}
	}
	if !r.Status.Valid() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "unknown status"}
	}
	if r.Percent.IsNegative() || r.Percent.GreaterThan(oneHundred) {
		return &InvalidRuleError{RuleID: r.ID, Reason: "retained percentage must be in [0,100]"}
	}
	if r.DevelopmentID != "" && r.ProductID != "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "a rule targets at most one override level"}
	}
	if r.Window != nil && !r.Window.Valid() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "validity window ends before it starts"}
	}
	return nil
}

// EligibleAt reports whether the rule can be applied on the given date:
// active status and, when a window is present, the date falls inside it.
func (r TotalCommissionRule) EligibleAt(date time.Time) bool {
	if r.Status != StatusActive {
		return false
	}
	if r.Window == nil {
		return true
	}
	return r.Window.Contains(date)
}

// =============================================================================
// DISTRIBUTION RULE - Split of the retained amount
// =============================================================================

// DistributionRule splits a retained amount among an ordered list of
// participants. Exactly one active DistributionRule may be linked to a
// TotalCommissionRule at any time; the store enforces that invariant.
type DistributionRule struct {
	ID          RuleID
	Name        string
	Description string
	TotalRuleID RuleID // the TotalCommissionRule this distribution is linked to
	Status      RuleStatus
	Participants []Participant

	Version int
}

// Validate enforces the structural invariants. Link uniqueness and
// referential integrity are checked by the store, which sees all rules.
func (r DistributionRule) Validate() error {
	if r.ID == "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "id is required"}
	}
	if r.Name == "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "name is required"}
	}
	if r.TotalRuleID == "" {
		return &InvalidRuleError{RuleID: r.ID, Reason: "must reference a total commission rule"}
	}
	if !r.Status.Valid() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "unknown status"}
	}
	if len(r.Participants) == 0 {
		return &InvalidRuleError{RuleID: r.ID, Reason: "at least one participant is required"}
	}
	for i, p := range r.Participants {
		if err := p.Validate(); err != nil {
			return &InvalidRuleError{RuleID: r.ID, Reason: fmt.Sprintf("participant %d: %v", i, err)}
		}
	}
	return nil
}

// ActiveParticipants returns the participants with Active set, in rule order.
func (r DistributionRule) ActiveParticipants() []Participant {
	var active []Participant
	for _, p := range r.Participants {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// =============================================================================
// PARTICIPANT - Value object nested inside a DistributionRule
// =============================================================================

// Participant is one role entitled to a share of a distribution.
// It has no identity of its own; it is created, edited, and removed as part
// of editing its owning DistributionRule.
type Participant struct {
	Role       Role
	Percent    decimal.Decimal // nominal share, 0-100
	Active     bool
	Fixed      bool // fixed shares are never adjusted by the engine
	Obligatory bool // must be present and active for allocation to succeed
	GroupID    GroupID         // required when Role == RoleGroup
	Min        *decimal.Decimal // lower bound for variable shares, optional
	Max        *decimal.Decimal // upper bound for variable shares, optional
}

// Validate enforces per-participant invariants.
func (p Participant) Validate() error {
	if !p.Role.Valid() {
		return &InvalidRuleError{Reason: "unknown role"}
	}
	if p.Role == RoleGroup && p.GroupID == "" {
		return &InvalidRuleError{Reason: "group participant requires a group id"}
	}
	if p.Percent.IsNegative() || p.Percent.GreaterThan(oneHundred) {
		return &InvalidRuleError{Reason: "share must be in [0,100]"}
	}
	if p.Min != nil && p.Max != nil && p.Max.LessThan(*p.Min) {
		return &InvalidRuleError{Reason: "maximum bound below minimum bound"}
	}
	// Bounds only constrain variable shares; a fixed share is taken verbatim.
	if !p.Fixed {
		if p.Min != nil && p.Percent.LessThan(*p.Min) {
			return &InvalidRuleError{Reason: "nominal share below minimum bound"}
		}
		if p.Max != nil && p.Percent.GreaterThan(*p.Max) {
			return &InvalidRuleError{Reason: "nominal share above maximum bound"}
		}
	}
	return nil
}
