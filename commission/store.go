/*
store.go - Persistence interface for commission rules

PURPOSE:
  Defines the interface between the commission logic and storage. The
  resolver and allocation engine depend only on these query shapes - lookup
  by id, by product type, by linked total-rule id - never on a specific
  storage technology.

KEY INTERFACES:
  Snapshot:  Read access over a consistent view of the rule data
  RuleStore: Snapshot plus the authoring write path

SNAPSHOT CONSISTENCY:
  Resolution must not observe a total rule update without its matching
  distribution update (or vice versa). View() runs the given function
  against a single consistent snapshot; implementations use a read
  transaction (SQLite) or a read lock (memory).

WRITE-PATH INVARIANTS:
  The store is the final authority on rule invariants. Whatever the
  authoring UI already checked, writes re-validate:
  - structural invariants (Validate on each rule)
  - referential integrity (distribution -> existing total rule)
  - link uniqueness: at most one ACTIVE distribution per total rule;
    a write that would create a second is rejected with ConflictingLink
  - optimistic versioning: a write carrying a stale Version is rejected
    with ErrConcurrentModification, so two concurrent edits cannot race
    the link-uniqueness invariant

IMPLEMENTATIONS:
  - commission/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go:     Durable SQLite store

SEE ALSO:
  - resolver.go: Reads through Snapshot/View
  - rules.go: The Validate methods writes re-run
*/
package commission

import "context"

// =============================================================================
// SNAPSHOT - Read access over a consistent view
// =============================================================================

// Snapshot exposes the queries resolution needs. All methods are read-only.
type Snapshot interface {
	// TotalRule returns a total-commission rule by id, or ErrRuleNotFound.
	TotalRule(ctx context.Context, id RuleID) (*TotalCommissionRule, error)

	// TotalRulesByProductType returns every total-commission rule tagged with
	// the product type, regardless of status. Eligibility filtering belongs
	// to the resolver.
	TotalRulesByProductType(ctx context.Context, pt ProductType) ([]TotalCommissionRule, error)

	// DistributionRule returns a distribution rule by id, or ErrRuleNotFound.
	DistributionRule(ctx context.Context, id RuleID) (*DistributionRule, error)

	// DistributionsByTotalRule returns every distribution linked to the
	// total rule, regardless of status.
	DistributionsByTotalRule(ctx context.Context, totalID RuleID) ([]DistributionRule, error)
}

// =============================================================================
// RULE STORE - Snapshot plus the authoring write path
// =============================================================================

// RuleStore is the full rule persistence contract. Reads outside View see
// a point-in-time state that may interleave with writes; resolution should
// always go through View.
type RuleStore interface {
	Snapshot

	// View runs fn against one consistent snapshot of all rule data.
	View(ctx context.Context, fn func(Snapshot) error) error

	// ListTotalRules returns all total-commission rules.
	ListTotalRules(ctx context.Context) ([]TotalCommissionRule, error)

	// ListDistributionRules returns all distribution rules.
	ListDistributionRules(ctx context.Context) ([]DistributionRule, error)

	// SaveTotalRule creates or updates a total-commission rule after
	// re-validating its invariants. Updates must carry the current Version.
	SaveTotalRule(ctx context.Context, rule TotalCommissionRule) error

	// SaveDistributionRule creates or updates a distribution rule after
	// re-validating invariants, referential integrity, and link uniqueness.
	SaveDistributionRule(ctx context.Context, rule DistributionRule) error
}
