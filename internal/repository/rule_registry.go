package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/domain/repository"
)

type ruleEntry struct {
	rule models.AlertRule

	mu     sync.Mutex // guards status transitions
	status models.TriggerStatus
}

// MemoryRuleRegistry holds alert rules and their trigger latches. Latch
// transitions take a per-rule lock, so the armed -> triggered race between
// two concurrent evaluations has exactly one winner.
type MemoryRuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]*ruleEntry
}

// NewMemoryRuleRegistry creates an empty rule registry.
func NewMemoryRuleRegistry() *MemoryRuleRegistry {
	return &MemoryRuleRegistry{rules: make(map[string]*ruleEntry)}
}

var _ repository.RuleRegistry = (*MemoryRuleRegistry)(nil)

func (r *MemoryRuleRegistry) Create(ctx context.Context, rule models.AlertRule) (models.AlertRule, error) {
	if rule.Commodity == "" || rule.Market == "" {
		return models.AlertRule{}, fmt.Errorf("rule commodity and market are required")
	}
	if _, err := models.ParseRuleKind(string(rule.Kind)); err != nil {
		return models.AlertRule{}, err
	}
	if !rule.Threshold.IsPositive() && rule.Kind != models.RuleChangePercent {
		return models.AlertRule{}, fmt.Errorf("rule threshold must be positive")
	}
	if rule.Kind == models.RuleChangePercent && !rule.ChangePercent.IsPositive() {
		return models.AlertRule{}, fmt.Errorf("change_percent rule needs a positive change percentage")
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.Active = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.ID]; exists {
		return models.AlertRule{}, fmt.Errorf("rule %s already exists", rule.ID)
	}
	r.rules[rule.ID] = &ruleEntry{
		rule:   rule,
		status: models.TriggerStatus{State: models.StateArmed},
	}
	return rule, nil
}

func (r *MemoryRuleRegistry) Delete(ctx context.Context, ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[ruleID]; !ok {
		return fmt.Errorf("rule %s not found", ruleID)
	}
	delete(r.rules, ruleID)
	return nil
}

func (r *MemoryRuleRegistry) Get(ctx context.Context, ruleID string) (models.AlertRule, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rules[ruleID]
	if !ok {
		return models.AlertRule{}, false, nil
	}
	return e.rule, true, nil
}

func (r *MemoryRuleRegistry) ListByOwner(ctx context.Context, ownerID string) ([]models.AlertRule, error) {
	r.mu.RLock()
	out := make([]models.AlertRule, 0)
	for _, e := range r.rules {
		if e.rule.OwnerID == ownerID {
			out = append(out, e.rule)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRuleRegistry) MatchActive(ctx context.Context, commodity, market string) ([]models.AlertRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AlertRule, 0)
	for _, e := range r.rules {
		if e.rule.Active && e.rule.Commodity == commodity && e.rule.Market == market {
			out = append(out, e.rule)
		}
	}
	return out, nil
}

func (r *MemoryRuleRegistry) Status(ctx context.Context, ruleID string) (models.TriggerStatus, bool, error) {
	r.mu.RLock()
	e, ok := r.rules[ruleID]
	r.mu.RUnlock()
	if !ok {
		return models.TriggerStatus{}, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true, nil
}

// Transition is the registry's compare-and-set. A rule deleted mid-flight
// reports false rather than an error; the evaluator simply drops it.
func (r *MemoryRuleRegistry) Transition(ctx context.Context, ruleID string, from, to models.TriggerState, observed decimal.Decimal) (bool, error) {
	r.mu.RLock()
	e, ok := r.rules[ruleID]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.State != from {
		return false, nil
	}
	e.status.State = to
	if to == models.StateTriggered {
		e.status.LastTriggerValue = observed
		e.status.LastTriggeredAt = time.Now().UTC()
	}
	return true, nil
}
