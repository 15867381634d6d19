/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Rules:
    factory.TotalRuleJSON / factory.DistributionRuleJSON are reused as-is;
    the authoring UI and the config files share one schema.

  Commissions:
    ComputeCommissionRequest, AllocationDTO, AllocationLineDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

PRECISION:
  Monetary values and percentages are JSON strings ("25000.00"), never
  floats. Clients doing arithmetic on them must use a decimal library.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: Shared rule JSON schema
*/
package api

import (
	"github.com/imovia/commission-engine/commission"
	"github.com/imovia/commission-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ComputeCommissionRequest describes the sale to commission.
type ComputeCommissionRequest struct {
	ProductType   string `json:"product_type"`
	ProductID     string `json:"product_id"`
	DevelopmentID string `json:"development_id,omitempty"`
	SaleDate      string `json:"sale_date"` // YYYY-MM-DD
	SaleValue     string `json:"sale_value"`
	Currency      string `json:"currency,omitempty"` // default BRL
}

// AllocationLineDTO is one participant's payout.
type AllocationLineDTO struct {
	Role    string `json:"role"`
	GroupID string `json:"group_id,omitempty"`
	Percent string `json:"percent"`
	Amount  string `json:"amount"`
}

// AllocationDTO is a finalized commission breakdown.
type AllocationDTO struct {
	ID                 string              `json:"id,omitempty"` // set when persisted
	TotalRuleID        string              `json:"total_rule_id"`
	DistributionRuleID string              `json:"distribution_rule_id"`
	ProductID          string              `json:"product_id,omitempty"`
	SaleDate           string              `json:"sale_date,omitempty"`
	SaleValue          string              `json:"sale_value,omitempty"`
	RetainedAmount     string              `json:"retained_amount"`
	Currency           string              `json:"currency"`
	Lines              []AllocationLineDTO `json:"lines"`
}

// PreviewDTO reports which rules a hypothetical sale would resolve to,
// without computing amounts.
type PreviewDTO struct {
	TotalRuleID        string `json:"total_rule_id"`
	TotalRuleName      string `json:"total_rule_name"`
	Percent            string `json:"percent"`
	DistributionRuleID string `json:"distribution_rule_id"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the uniform error payload. Code is the stable
// machine-readable failure kind from commission.ErrorCode.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAllocationDTO(result *commission.AllocationResult) AllocationDTO {
	dto := AllocationDTO{
		TotalRuleID:        string(result.TotalRuleID),
		DistributionRuleID: string(result.DistributionRuleID),
		RetainedAmount:     result.RetainedAmount.Value.StringFixed(2),
		Currency:           string(result.RetainedAmount.Currency),
	}
	for _, line := range result.Lines {
		dto.Lines = append(dto.Lines, AllocationLineDTO{
			Role:    string(line.Role),
			GroupID: string(line.GroupID),
			Percent: line.Percent.String(),
			Amount:  line.Amount.Value.StringFixed(2),
		})
	}
	return dto
}

func toAllocationRecordDTO(rec sqlite.AllocationRecord) AllocationDTO {
	dto := toAllocationDTO(&rec.Result)
	dto.ID = rec.ID
	dto.ProductID = rec.Sale.ProductID
	dto.SaleDate = rec.Sale.SaleDate.Format("2006-01-02")
	dto.SaleValue = rec.Sale.SaleValue.Value.StringFixed(2)
	return dto
}
