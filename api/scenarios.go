/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	rule data for testing and demos. Each scenario creates total-commission
	rules and distributions that demonstrate specific engine features.

AVAILABLE SCENARIOS:

	standard-unit:        Type-level retention with a mixed fixed/variable split
	development-override: Development-scoped rule taking precedence
	inactive-support:     Deactivated participant triggering rescaling
	bounded-lead:         Scaling blocked by a contractual max bound

HOW SCENARIOS WORK:
 1. Reset database (clear all rules and allocations)
 2. Create total-commission rules
 3. Create linked distribution rules

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard-unit"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - commission/rules.go: Rule semantics the scenarios exercise
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/imovia/commission-engine/commission"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-unit",
		Name:        "Standard Unit Sale",
		Description: "5% retention on units, split across agency (fixed) and three variable brokers",
	},
	{
		ID:          "development-override",
		Name:        "Development Override",
		Description: "A 6% development-scoped rule overriding the 5% type-level default",
	},
	{
		ID:          "inactive-support",
		Name:        "Inactive Support Broker",
		Description: "Deactivated variable participant; remaining shares rescale proportionally",
	},
	{
		ID:          "bounded-lead",
		Name:        "Bounded Lead Broker",
		Description: "Rescaling would exceed the lead broker's max bound; computation fails",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "standard-unit":
		err = h.loadStandardUnitScenario(ctx)
	case "development-override":
		err = h.loadDevelopmentOverrideScenario(ctx)
	case "inactive-support":
		err = h.loadInactiveSupportScenario(ctx)
	case "bounded-lead":
		err = h.loadBoundedLeadScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all rule and allocation data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadStandardUnitScenario seeds the baseline: a type-level 5% retention on
// unit sales split 10% agency (fixed), 50/20/20 variable brokers.
func (h *Handler) loadStandardUnitScenario(ctx context.Context) error {
	total := commission.TotalCommissionRule{
		ID:          "unit-default",
		Name:        "Default unit retention",
		ProductType: commission.ProductUnit,
		Percent:     pct("5"),
		Status:      commission.StatusActive,
	}
	if err := h.Store.SaveTotalRule(ctx, total); err != nil {
		return err
	}

	dist := commission.DistributionRule{
		ID:          "unit-default-split",
		Name:        "Default unit split",
		TotalRuleID: total.ID,
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: pct("10"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleLeadBroker, Percent: pct("50"), Active: true},
			{Role: commission.RoleSupportBroker, Percent: pct("20"), Active: true},
			{Role: commission.RoleCoordinator, Percent: pct("20"), Active: true},
		},
	}
	return h.Store.SaveDistributionRule(ctx, dist)
}

// loadDevelopmentOverrideScenario adds a development-scoped 6% rule on top
// of the baseline, so sales in dev-horizonte resolve to the override.
func (h *Handler) loadDevelopmentOverrideScenario(ctx context.Context) error {
	if err := h.loadStandardUnitScenario(ctx); err != nil {
		return err
	}

	override := commission.TotalCommissionRule{
		ID:            "horizonte-premium",
		Name:          "Horizonte launch retention",
		ProductType:   commission.ProductUnit,
		Percent:       pct("6"),
		Status:        commission.StatusActive,
		DevelopmentID: "dev-horizonte",
	}
	if err := h.Store.SaveTotalRule(ctx, override); err != nil {
		return err
	}

	dist := commission.DistributionRule{
		ID:          "horizonte-premium-split",
		Name:        "Horizonte launch split",
		TotalRuleID: override.ID,
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: pct("15"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleLeadBroker, Percent: pct("55"), Active: true},
			{Role: commission.RoleGroup, Percent: pct("30"), Active: true, GroupID: "team-horizonte"},
		},
	}
	return h.Store.SaveDistributionRule(ctx, dist)
}

// loadInactiveSupportScenario seeds a split where the support broker has
// been deactivated: fixed shares hold 30%, and the lead broker's nominal
// 50% rescales to absorb the full remaining 70%.
func (h *Handler) loadInactiveSupportScenario(ctx context.Context) error {
	total := commission.TotalCommissionRule{
		ID:          "unit-default",
		Name:        "Default unit retention",
		ProductType: commission.ProductUnit,
		Percent:     pct("5"),
		Status:      commission.StatusActive,
	}
	if err := h.Store.SaveTotalRule(ctx, total); err != nil {
		return err
	}

	dist := commission.DistributionRule{
		ID:          "unit-rescaled-split",
		Name:        "Split with deactivated support broker",
		TotalRuleID: total.ID,
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: pct("10"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleReferrer, Percent: pct("20"), Active: true, Fixed: true},
			{Role: commission.RoleLeadBroker, Percent: pct("50"), Active: true},
			{Role: commission.RoleSupportBroker, Percent: pct("20"), Active: false},
		},
	}
	return h.Store.SaveDistributionRule(ctx, dist)
}

// loadBoundedLeadScenario is the inactive-support layout with a max bound
// of 60% on the lead broker. Rescaling needs 70%, so computation fails
// with unsatisfiable_bounds - the demo for typed failure reporting.
func (h *Handler) loadBoundedLeadScenario(ctx context.Context) error {
	total := commission.TotalCommissionRule{
		ID:          "unit-default",
		Name:        "Default unit retention",
		ProductType: commission.ProductUnit,
		Percent:     pct("5"),
		Status:      commission.StatusActive,
	}
	if err := h.Store.SaveTotalRule(ctx, total); err != nil {
		return err
	}

	leadMax := pct("60")
	dist := commission.DistributionRule{
		ID:          "unit-bounded-split",
		Name:        "Split with bounded lead broker",
		TotalRuleID: total.ID,
		Status:      commission.StatusActive,
		Participants: []commission.Participant{
			{Role: commission.RoleAgency, Percent: pct("10"), Active: true, Fixed: true, Obligatory: true},
			{Role: commission.RoleReferrer, Percent: pct("20"), Active: true, Fixed: true},
			{Role: commission.RoleLeadBroker, Percent: pct("50"), Active: true, Max: &leadMax},
			{Role: commission.RoleSupportBroker, Percent: pct("20"), Active: false},
		},
	}
	return h.Store.SaveDistributionRule(ctx, dist)
}

func pct(s string) decimal.Decimal {
	return commission.MustParseDecimal(s)
}
