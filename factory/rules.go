/*
Package factory provides JSON to Go commission-rule conversion.

PURPOSE:
  Converts JSON rule definitions into commission.TotalCommissionRule and
  commission.DistributionRule objects. This enables rule configuration
  without code changes - back-office administrators can author rules in
  JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can author rules
  - Easy integration with the admin UI
  - Version control for rule definitions
  - The API request/response bodies use the same shapes

JSON SCHEMA:
  Rules are a tagged union on "kind":

  {
    "kind": "total_commission",
    "id": "unit-default",
    "name": "Default unit commission",
    "product_type": "real_estate_unit",
    "percent": "5",
    "status": "active",
    "window": {"start": "2026-01-01", "end": "2026-12-31"},
    "development_id": "dev-alpha",
    "product_id": ""
  }

  {
    "kind": "distribution",
    "id": "unit-default-split",
    "name": "Default unit split",
    "total_rule_id": "unit-default",
    "status": "active",
    "participants": [
      {"role": "agency", "percent": "10", "fixed": true, "obligatory": true},
      {"role": "lead_broker", "percent": "50", "min": "30", "max": "70"},
      {"role": "group", "percent": "20", "group_id": "team-centro"}
    ]
  }

PRECISION:
  Percentages and bounds travel as decimal strings, never JSON floats.
  "0.1" must survive the round trip exactly - it ends up on an invoice.

DEFAULTS:
  Participants are active unless "active": false is given. Everything else
  must be explicit; the factory validates via the rules' own Validate().

SEE ALSO:
  - commission/rules.go: Rule type definitions and invariants
  - api/dto.go: HTTP layer reusing these JSON shapes
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imovia/commission-engine/commission"
)

// Rule kinds in the tagged union.
const (
	KindTotalCommission = "total_commission"
	KindDistribution    = "distribution"
)

const dateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TotalRuleJSON is the JSON representation of a total-commission rule.
type TotalRuleJSON struct {
	Kind          string      `json:"kind"`
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	ProductType   string      `json:"product_type"`
	Percent       string      `json:"percent"`
	Status        string      `json:"status"`
	Window        *WindowJSON `json:"window,omitempty"`
	DevelopmentID string      `json:"development_id,omitempty"`
	ProductID     string      `json:"product_id,omitempty"`
	Version       int         `json:"version,omitempty"`
}

// DistributionRuleJSON is the JSON representation of a distribution rule.
type DistributionRuleJSON struct {
	Kind         string            `json:"kind"`
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	TotalRuleID  string            `json:"total_rule_id"`
	Status       string            `json:"status"`
	Participants []ParticipantJSON `json:"participants"`
	Version      int               `json:"version,omitempty"`
}

// ParticipantJSON is one participant in a distribution rule.
type ParticipantJSON struct {
	Role       string  `json:"role"`
	Percent    string  `json:"percent"`
	Active     *bool   `json:"active,omitempty"` // default true
	Fixed      bool    `json:"fixed,omitempty"`
	Obligatory bool    `json:"obligatory,omitempty"`
	GroupID    string  `json:"group_id,omitempty"`
	Min        *string `json:"min,omitempty"`
	Max        *string `json:"max,omitempty"`
}

// WindowJSON is a closed date range, dates formatted as YYYY-MM-DD.
type WindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs and back.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParsedRule is the result of parsing the tagged union: exactly one of
// Total and Distribution is set, matching Kind.
type ParsedRule struct {
	Kind         string
	Total        *commission.TotalCommissionRule
	Distribution *commission.DistributionRule
}

// ParseRule parses a JSON rule of either kind, dispatching on "kind".
func (f *RuleFactory) ParseRule(data []byte) (*ParsedRule, error) {
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}

	switch tag.Kind {
	case KindTotalCommission:
		rule, err := f.ParseTotalRule(data)
		if err != nil {
			return nil, err
		}
		return &ParsedRule{Kind: tag.Kind, Total: rule}, nil
	case KindDistribution:
		rule, err := f.ParseDistributionRule(data)
		if err != nil {
			return nil, err
		}
		return &ParsedRule{Kind: tag.Kind, Distribution: rule}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", tag.Kind)
	}
}

// ParseTotalRule parses a JSON total-commission rule.
func (f *RuleFactory) ParseTotalRule(data []byte) (*commission.TotalCommissionRule, error) {
	var rj TotalRuleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse total rule JSON: %w", err)
	}
	return f.FromTotalJSON(rj)
}

// ParseDistributionRule parses a JSON distribution rule.
func (f *RuleFactory) ParseDistributionRule(data []byte) (*commission.DistributionRule, error) {
	var rj DistributionRuleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse distribution rule JSON: %w", err)
	}
	return f.FromDistributionJSON(rj)
}

// FromTotalJSON converts TotalRuleJSON to a validated TotalCommissionRule.
func (f *RuleFactory) FromTotalJSON(rj TotalRuleJSON) (*commission.TotalCommissionRule, error) {
	percent, err := parsePercent(rj.Percent, "percent")
	if err != nil {
		return nil, err
	}

	rule := &commission.TotalCommissionRule{
		ID:            commission.RuleID(rj.ID),
		Name:          rj.Name,
		Description:   rj.Description,
		ProductType:   commission.ProductType(rj.ProductType),
		Percent:       percent,
		Status:        parseStatus(rj.Status),
		DevelopmentID: rj.DevelopmentID,
		ProductID:     rj.ProductID,
		Version:       rj.Version,
	}

	if rj.Window != nil {
		window, err := parseWindow(*rj.Window)
		if err != nil {
			return nil, err
		}
		rule.Window = window
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// FromDistributionJSON converts DistributionRuleJSON to a validated
// DistributionRule.
func (f *RuleFactory) FromDistributionJSON(rj DistributionRuleJSON) (*commission.DistributionRule, error) {
	rule := &commission.DistributionRule{
		ID:          commission.RuleID(rj.ID),
		Name:        rj.Name,
		Description: rj.Description,
		TotalRuleID: commission.RuleID(rj.TotalRuleID),
		Status:      parseStatus(rj.Status),
		Version:     rj.Version,
	}

	for i, pj := range rj.Participants {
		p, err := parseParticipant(pj, i)
		if err != nil {
			return nil, err
		}
		rule.Participants = append(rule.Participants, p)
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// ToTotalJSON converts a TotalCommissionRule to its JSON shape.
func (f *RuleFactory) ToTotalJSON(rule commission.TotalCommissionRule) TotalRuleJSON {
	rj := TotalRuleJSON{
		Kind:          KindTotalCommission,
		ID:            string(rule.ID),
		Name:          rule.Name,
		Description:   rule.Description,
		ProductType:   string(rule.ProductType),
		Percent:       rule.Percent.String(),
		Status:        string(rule.Status),
		DevelopmentID: rule.DevelopmentID,
		ProductID:     rule.ProductID,
		Version:       rule.Version,
	}
	if rule.Window != nil {
		rj.Window = &WindowJSON{
			Start: rule.Window.Start.Format(dateLayout),
			End:   rule.Window.End.Format(dateLayout),
		}
	}
	return rj
}

// ToDistributionJSON converts a DistributionRule to its JSON shape.
func (f *RuleFactory) ToDistributionJSON(rule commission.DistributionRule) DistributionRuleJSON {
	rj := DistributionRuleJSON{
		Kind:        KindDistribution,
		ID:          string(rule.ID),
		Name:        rule.Name,
		Description: rule.Description,
		TotalRuleID: string(rule.TotalRuleID),
		Status:      string(rule.Status),
		Version:     rule.Version,
	}
	for _, p := range rule.Participants {
		active := p.Active
		pj := ParticipantJSON{
			Role:       string(p.Role),
			Percent:    p.Percent.String(),
			Active:     &active,
			Fixed:      p.Fixed,
			Obligatory: p.Obligatory,
			GroupID:    string(p.GroupID),
		}
		if p.Min != nil {
			s := p.Min.String()
			pj.Min = &s
		}
		if p.Max != nil {
			s := p.Max.String()
			pj.Max = &s
		}
		rj.Participants = append(rj.Participants, pj)
	}
	return rj
}

// =============================================================================
// FIELD PARSING
// =============================================================================

func parseParticipant(pj ParticipantJSON, index int) (commission.Participant, error) {
	percent, err := parsePercent(pj.Percent, fmt.Sprintf("participants[%d].percent", index))
	if err != nil {
		return commission.Participant{}, err
	}

	p := commission.Participant{
		Role:       commission.Role(pj.Role),
		Percent:    percent,
		Active:     true,
		Fixed:      pj.Fixed,
		Obligatory: pj.Obligatory,
		GroupID:    commission.GroupID(pj.GroupID),
	}
	if pj.Active != nil {
		p.Active = *pj.Active
	}
	if pj.Min != nil {
		min, err := parsePercent(*pj.Min, fmt.Sprintf("participants[%d].min", index))
		if err != nil {
			return commission.Participant{}, err
		}
		p.Min = &min
	}
	if pj.Max != nil {
		max, err := parsePercent(*pj.Max, fmt.Sprintf("participants[%d].max", index))
		if err != nil {
			return commission.Participant{}, err
		}
		p.Max = &max
	}
	return p, nil
}

func parsePercent(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", field, s)
	}
	return d, nil
}

// parseStatus defaults an empty status to pending: a rule is never born
// active by omission.
func parseStatus(s string) commission.RuleStatus {
	if s == "" {
		return commission.StatusPending
	}
	return commission.RuleStatus(s)
}

func parseWindow(wj WindowJSON) (*commission.ValidityWindow, error) {
	start, err := time.Parse(dateLayout, wj.Start)
	if err != nil {
		return nil, fmt.Errorf("window.start: invalid date %q (want YYYY-MM-DD)", wj.Start)
	}
	end, err := time.Parse(dateLayout, wj.End)
	if err != nil {
		return nil, fmt.Errorf("window.end: invalid date %q (want YYYY-MM-DD)", wj.End)
	}
	return &commission.ValidityWindow{Start: start, End: end}, nil
}
