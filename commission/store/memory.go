// Package store provides RuleStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/imovia/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	totals map[commission.RuleID]commission.TotalCommissionRule
	dists  map[commission.RuleID]commission.DistributionRule
}

// Compile-time check that Memory implements the full store contract
var _ commission.RuleStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		totals: make(map[commission.RuleID]commission.TotalCommissionRule),
		dists:  make(map[commission.RuleID]commission.DistributionRule),
	}
}

// View runs fn against a consistent snapshot. The read lock is held for the
// whole call, so a rule update and its linked distribution update are never
// observed half-applied.
func (m *Memory) View(_ context.Context, fn func(commission.Snapshot) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryView{m: m})
}

func (m *Memory) TotalRule(ctx context.Context, id commission.RuleID) (*commission.TotalCommissionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).TotalRule(ctx, id)
}

func (m *Memory) TotalRulesByProductType(ctx context.Context, pt commission.ProductType) ([]commission.TotalCommissionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).TotalRulesByProductType(ctx, pt)
}

func (m *Memory) DistributionRule(ctx context.Context, id commission.RuleID) (*commission.DistributionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).DistributionRule(ctx, id)
}

func (m *Memory) DistributionsByTotalRule(ctx context.Context, totalID commission.RuleID) ([]commission.DistributionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).DistributionsByTotalRule(ctx, totalID)
}

func (m *Memory) ListTotalRules(_ context.Context) ([]commission.TotalCommissionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]commission.TotalCommissionRule, 0, len(m.totals))
	for _, r := range m.totals {
		rules = append(rules, cloneTotal(r))
	}
	return rules, nil
}

func (m *Memory) ListDistributionRules(_ context.Context) ([]commission.DistributionRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]commission.DistributionRule, 0, len(m.dists))
	for _, r := range m.dists {
		rules = append(rules, cloneDist(r))
	}
	return rules, nil
}

// =============================================================================
// WRITE PATH - Serialized, re-validating, version-checked
// =============================================================================

// SaveTotalRule creates or updates a total-commission rule.
func (m *Memory) SaveTotalRule(_ context.Context, rule commission.TotalCommissionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.totals[rule.ID]; ok {
		if rule.Version != existing.Version {
			return commission.ErrConcurrentModification
		}
	} else if rule.Version != 0 {
		return commission.ErrConcurrentModification
	}

	rule.Version++
	m.totals[rule.ID] = cloneTotal(rule)
	return nil
}

// SaveDistributionRule creates or updates a distribution rule. The write is
// rejected when it would leave two active distributions linked to the same
// total rule, or when the referenced total rule does not exist.
func (m *Memory) SaveDistributionRule(_ context.Context, rule commission.DistributionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.totals[rule.TotalRuleID]; !ok {
		return commission.ErrRuleNotFound
	}

	if existing, ok := m.dists[rule.ID]; ok {
		if rule.Version != existing.Version {
			return commission.ErrConcurrentModification
		}
	} else if rule.Version != 0 {
		return commission.ErrConcurrentModification
	}

	if rule.Status == commission.StatusActive {
		for _, other := range m.dists {
			if other.ID != rule.ID && other.TotalRuleID == rule.TotalRuleID && other.Status == commission.StatusActive {
				return &commission.ConflictingLinkError{
					TotalRuleID: rule.TotalRuleID,
					ExistingID:  other.ID,
					RejectedID:  rule.ID,
				}
			}
		}
	}

	rule.Version++
	m.dists[rule.ID] = cloneDist(rule)
	return nil
}

// =============================================================================
// SNAPSHOT VIEW - Lock-free access; the caller holds the lock
// =============================================================================

type memoryView struct {
	m *Memory
}

func (v *memoryView) TotalRule(_ context.Context, id commission.RuleID) (*commission.TotalCommissionRule, error) {
	rule, ok := v.m.totals[id]
	if !ok {
		return nil, commission.ErrRuleNotFound
	}
	c := cloneTotal(rule)
	return &c, nil
}

func (v *memoryView) TotalRulesByProductType(_ context.Context, pt commission.ProductType) ([]commission.TotalCommissionRule, error) {
	var rules []commission.TotalCommissionRule
	for _, r := range v.m.totals {
		if r.ProductType == pt {
			rules = append(rules, cloneTotal(r))
		}
	}
	return rules, nil
}

func (v *memoryView) DistributionRule(_ context.Context, id commission.RuleID) (*commission.DistributionRule, error) {
	rule, ok := v.m.dists[id]
	if !ok {
		return nil, commission.ErrRuleNotFound
	}
	c := cloneDist(rule)
	return &c, nil
}

func (v *memoryView) DistributionsByTotalRule(_ context.Context, totalID commission.RuleID) ([]commission.DistributionRule, error) {
	var rules []commission.DistributionRule
	for _, r := range v.m.dists {
		if r.TotalRuleID == totalID {
			rules = append(rules, cloneDist(r))
		}
	}
	return rules, nil
}

// =============================================================================
// CLONING - Readers never share mutable state with the store
// =============================================================================

func cloneTotal(r commission.TotalCommissionRule) commission.TotalCommissionRule {
	if r.Window != nil {
		w := *r.Window
		r.Window = &w
	}
	return r
}

func cloneDist(r commission.DistributionRule) commission.DistributionRule {
	participants := make([]commission.Participant, len(r.Participants))
	for i, p := range r.Participants {
		if p.Min != nil {
			min := *p.Min
			p.Min = &min
		}
		if p.Max != nil {
			max := *p.Max
			p.Max = &max
		}
		participants[i] = p
	}
	r.Participants = participants
	return r
}
