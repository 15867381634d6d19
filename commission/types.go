/*
Package commission implements hierarchical commission resolution and allocation
for real-estate sales.

PURPOSE:
  Given a sale (a property, a land parcel, or a development unit), decide what
  percentage of the sale value the agency retains, and how that retained amount
  is split among internal participants: agency, lead broker, support broker,
  coordinator, team, referrer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount with a currency, backed by decimal.Decimal
  - ProductType: What kind of product was sold
  - SaleContext: Immutable input describing the sale being commissioned
  - AllocationResult: The finalized breakdown of who gets paid what

DESIGN PRINCIPLES:
  1. Precision: all percentage and money math uses decimal.Decimal.
     Floating point never touches an amount that ends up on an invoice.
  2. Immutability: rules are read-only inputs to resolution; computing a
     commission never mutates anything.
  3. Determinism: the same rules and the same sale always produce the same
     breakdown, byte for byte.

SEE ALSO:
  - rules.go: TotalCommissionRule, DistributionRule, Participant
  - resolver.go: Rule selection with override precedence
  - engine.go: Percentage scaling and monetary allocation
  - service.go: Orchestration entry point
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount with currency
// =============================================================================

type Currency string

const (
	CurrencyBRL Currency = "BRL"
)

// Money is an exact monetary amount. The zero value is zero BRL.
type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewMoney(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromInt(value int64, currency Currency) Money {
	return Money{Value: decimal.NewFromInt(value), Currency: currency}
}

// MustParseDecimal parses a decimal string, returning zero on failure.
// Use only for trusted literals (tests, seed data).
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Zero() Money                 { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Value: m.Value.Div(s), Currency: m.Currency} }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) Equal(o Money) bool          { return m.Currency == o.Currency && m.Value.Equal(o.Value) }

// RoundToCents rounds to the currency's minor unit using round-half-up.
// Amounts in this system are non-negative, so decimal's half-away-from-zero
// rounding is exactly half-up here.
func (m Money) RoundToCents() Money {
	return Money{Value: m.Value.Round(2), Currency: m.Currency}
}

// Percentage applies pct (0-100) to the amount: m * pct / 100. Unrounded.
func (m Money) Percentage(pct decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(pct).Div(oneHundred), Currency: m.Currency}
}

func (m Money) String() string {
	return string(m.Currency) + " " + m.Value.StringFixed(2)
}

var oneHundred = decimal.NewFromInt(100)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RuleID string
type GroupID string

// =============================================================================
// PRODUCT TYPES - What kind of product the sale covers
// =============================================================================

type ProductType string

const (
	ProductUnit        ProductType = "real_estate_unit"
	ProductLand        ProductType = "land_parcel"
	ProductDevelopment ProductType = "development"
)

func (pt ProductType) Valid() bool {
	switch pt {
	case ProductUnit, ProductLand, ProductDevelopment:
		return true
	}
	return false
}

// =============================================================================
// RULE STATUS
// =============================================================================

type RuleStatus string

const (
	StatusActive   RuleStatus = "active"
	StatusInactive RuleStatus = "inactive"
	StatusPending  RuleStatus = "pending"
)

func (s RuleStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

// =============================================================================
// VALIDITY WINDOW - Optional date range during which a rule applies
// =============================================================================

// ValidityWindow is a closed date range. A nil *ValidityWindow on a rule
// means the rule is always valid.
type ValidityWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether date falls inside the window, inclusive on both
// ends. Comparison is at day granularity in UTC.
func (w ValidityWindow) Contains(date time.Time) bool {
	d := dayOf(date)
	return !d.Before(dayOf(w.Start)) && !d.After(dayOf(w.End))
}

func (w ValidityWindow) Valid() bool {
	return !w.End.Before(w.Start)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// SALE CONTEXT - Immutable input to resolution
// =============================================================================

// SaleContext parameterizes a single commission computation. It is never
// stored and never mutated.
type SaleContext struct {
	ProductType   ProductType
	ProductID     string
	DevelopmentID string // optional; set when the product belongs to a development
	SaleDate      time.Time
	SaleValue     Money
}

// Validate enforces required fields. There are deliberately no fallback
// defaults here: a sale with missing data must fail fast, not silently
// resolve against a substituted organization or product.
func (c SaleContext) Validate() error {
	if !c.ProductType.Valid() {
		return &InvalidSaleContextError{Field: "product_type", Reason: "unknown product type"}
	}
	if c.ProductID == "" {
		return &InvalidSaleContextError{Field: "product_id", Reason: "required"}
	}
	if c.SaleDate.IsZero() {
		return &InvalidSaleContextError{Field: "sale_date", Reason: "required"}
	}
	if c.SaleValue.Value.IsNegative() {
		return &InvalidSaleContextError{Field: "sale_value", Reason: "must be non-negative"}
	}
	return nil
}

// =============================================================================
// ALLOCATION RESULT - Finalized breakdown for one sale
// =============================================================================

// AllocationLine is one participant's payout within an AllocationResult.
type AllocationLine struct {
	Role    Role
	GroupID GroupID // set only for RoleGroup lines
	Percent decimal.Decimal
	Amount  Money
}

// AllocationResult is the output of a successful commission computation.
// Lines are in the distribution rule's participant order, and their amounts
// sum exactly to RetainedAmount.
type AllocationResult struct {
	TotalRuleID        RuleID
	DistributionRuleID RuleID
	RetainedAmount     Money
	Lines              []AllocationLine
}

// Total returns the sum of all line amounts.
func (r *AllocationResult) Total() Money {
	total := r.RetainedAmount.Zero()
	for _, l := range r.Lines {
		total = total.Add(l.Amount)
	}
	return total
}
