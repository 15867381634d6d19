/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rules:
    GET    /api/rules/total                 List total-commission rules
    POST   /api/rules/total                 Create total-commission rule
    GET    /api/rules/total/{id}            Get total-commission rule
    PUT    /api/rules/total/{id}            Update total-commission rule
    GET    /api/rules/distribution          List distribution rules
    POST   /api/rules/distribution          Create distribution rule
    GET    /api/rules/distribution/{id}     Get distribution rule
    PUT    /api/rules/distribution/{id}     Update distribution rule

  Commissions:
    POST   /api/commissions/compute         Compute and persist an allocation
    POST   /api/commissions/preview         Resolve rules without amounts
    GET    /api/allocations                 List persisted allocations

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (factory re-runs rule validation)
  3. Call domain logic (service, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with a stable machine-readable code and
  an HTTP status derived from the failure kind:
  - 400: Malformed input, invalid rule/sale data
  - 404: Rule not found
  - 409: Conflicting link, concurrent modification
  - 422: Resolution or allocation failure (rule data needs fixing)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imovia/commission-engine/commission"
	"github.com/imovia/commission-engine/factory"
	"github.com/imovia/commission-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Rules   *factory.RuleFactory
	Service *commission.Service

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Rules:   factory.NewRuleFactory(),
		Service: commission.NewService(store),
	}
}

// =============================================================================
// TOTAL-COMMISSION RULE HANDLERS
// =============================================================================

// ListTotalRules returns all total-commission rules.
func (h *Handler) ListTotalRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListTotalRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]factory.TotalRuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = h.Rules.ToTotalJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTotalRule returns a single total-commission rule.
func (h *Handler) GetTotalRule(w http.ResponseWriter, r *http.Request) {
	id := commission.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Store.TotalRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToTotalJSON(*rule))
}

// CreateTotalRule creates a total-commission rule. An omitted id is minted
// server-side.
func (h *Handler) CreateTotalRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.TotalRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if rj.ID == "" {
		rj.ID = uuid.NewString()
	}
	rj.Version = 0 // creation never carries a version

	rule, err := h.Rules.FromTotalJSON(rj)
	if err != nil {
		writeDomainError(w, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveTotalRule(r.Context(), *rule); err != nil {
		writeDomainError(w, "Failed to create rule", err)
		return
	}

	saved, err := h.Store.TotalRule(r.Context(), rule.ID)
	if err != nil {
		writeDomainError(w, "Failed to read back rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Rules.ToTotalJSON(*saved))
}

// UpdateTotalRule updates a total-commission rule. The body must carry the
// current version for optimistic concurrency.
func (h *Handler) UpdateTotalRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rj factory.TotalRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rj.ID = id

	rule, err := h.Rules.FromTotalJSON(rj)
	if err != nil {
		writeDomainError(w, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveTotalRule(r.Context(), *rule); err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}

	saved, err := h.Store.TotalRule(r.Context(), rule.ID)
	if err != nil {
		writeDomainError(w, "Failed to read back rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToTotalJSON(*saved))
}

// =============================================================================
// DISTRIBUTION RULE HANDLERS
// =============================================================================

// ListDistributionRules returns all distribution rules.
func (h *Handler) ListDistributionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListDistributionRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]factory.DistributionRuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = h.Rules.ToDistributionJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDistributionRule returns a single distribution rule.
func (h *Handler) GetDistributionRule(w http.ResponseWriter, r *http.Request) {
	id := commission.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Store.DistributionRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToDistributionJSON(*rule))
}

// CreateDistributionRule creates a distribution rule linked to an existing
// total rule.
func (h *Handler) CreateDistributionRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.DistributionRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if rj.ID == "" {
		rj.ID = uuid.NewString()
	}
	rj.Version = 0

	rule, err := h.Rules.FromDistributionJSON(rj)
	if err != nil {
		writeDomainError(w, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveDistributionRule(r.Context(), *rule); err != nil {
		writeDomainError(w, "Failed to create rule", err)
		return
	}

	saved, err := h.Store.DistributionRule(r.Context(), rule.ID)
	if err != nil {
		writeDomainError(w, "Failed to read back rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Rules.ToDistributionJSON(*saved))
}

// UpdateDistributionRule updates a distribution rule.
func (h *Handler) UpdateDistributionRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rj factory.DistributionRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rj.ID = id

	rule, err := h.Rules.FromDistributionJSON(rj)
	if err != nil {
		writeDomainError(w, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveDistributionRule(r.Context(), *rule); err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}

	saved, err := h.Store.DistributionRule(r.Context(), rule.ID)
	if err != nil {
		writeDomainError(w, "Failed to read back rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToDistributionJSON(*saved))
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ComputeCommission resolves rules for the sale, computes the breakdown,
// and persists it.
func (h *Handler) ComputeCommission(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.parseSale(w, r)
	if !ok {
		return
	}

	result, err := h.Service.ComputeCommission(r.Context(), sale)
	if err != nil {
		writeDomainError(w, "Commission computation failed", err)
		return
	}

	rec := sqlite.AllocationRecord{
		ID:     uuid.NewString(),
		Sale:   sale,
		Result: *result,
	}
	if err := h.Store.SaveAllocation(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist allocation", err)
		return
	}

	dto := toAllocationDTO(result)
	dto.ID = rec.ID
	dto.ProductID = sale.ProductID
	dto.SaleDate = sale.SaleDate.Format("2006-01-02")
	dto.SaleValue = sale.SaleValue.Value.StringFixed(2)
	writeJSON(w, http.StatusOK, dto)
}

// PreviewCommission resolves the rules a sale would hit without computing
// or persisting amounts.
func (h *Handler) PreviewCommission(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.parseSale(w, r)
	if !ok {
		return
	}

	resolved, err := h.Service.Preview(r.Context(), sale)
	if err != nil {
		writeDomainError(w, "Resolution failed", err)
		return
	}

	writeJSON(w, http.StatusOK, PreviewDTO{
		TotalRuleID:        string(resolved.Total.ID),
		TotalRuleName:      resolved.Total.Name,
		Percent:            resolved.Total.Percent.String(),
		DistributionRuleID: string(resolved.Distribution.ID),
	})
}

// ListAllocations returns persisted allocations, optionally filtered by
// product id.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListAllocations(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAllocationRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// parseSale converts the request body to a SaleContext, writing the error
// response itself when the body is malformed.
func (h *Handler) parseSale(w http.ResponseWriter, r *http.Request) (commission.SaleContext, bool) {
	var req ComputeCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return commission.SaleContext{}, false
	}

	saleDate, err := time.Parse("2006-01-02", req.SaleDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return commission.SaleContext{}, false
	}

	value, err := decimalFromString(req.SaleValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_value (decimal string required)", err)
		return commission.SaleContext{}, false
	}

	currency := commission.Currency(req.Currency)
	if currency == "" {
		currency = commission.CurrencyBRL
	}

	return commission.SaleContext{
		ProductType:   commission.ProductType(req.ProductType),
		ProductID:     req.ProductID,
		DevelopmentID: req.DevelopmentID,
		SaleDate:      saleDate,
		SaleValue:     commission.Money{Value: value, Currency: currency},
	}, true
}

// =============================================================================
// HELPERS
// =============================================================================

func decimalFromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("value is required")
	}
	return decimal.NewFromString(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain failure kind to an HTTP status and attaches
// the stable code so clients can branch without parsing messages.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{
		Error:   message,
		Code:    commission.ErrorCode(err),
		Details: err.Error(),
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, commission.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, commission.ErrConflictingLink),
		errors.Is(err, commission.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, commission.ErrInvalidRule),
		errors.Is(err, commission.ErrInvalidSaleContext):
		return http.StatusBadRequest
	case commission.IsResolutionError(err), commission.IsAllocationError(err):
		// The request was well-formed; the rule data needs fixing.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
