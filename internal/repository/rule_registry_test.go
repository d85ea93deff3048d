package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
)

func validRule() models.AlertRule {
	return models.AlertRule{
		OwnerID:   "farmer-1",
		Commodity: "Paddy",
		Market:    "Ranchi",
		Kind:      models.RuleAbove,
		Threshold: decimal.NewFromInt(1900),
	}
}

func TestCreateAssignsIDAndArms(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()

	created, err := r.Create(ctx, validRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("no id assigned")
	}
	if !created.Active {
		t.Fatalf("rule not active on creation")
	}
	status, ok, err := r.Status(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("status: ok=%v err=%v", ok, err)
	}
	if status.State != models.StateArmed {
		t.Fatalf("initial latch = %v, want armed", status.State)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()

	tests := []struct {
		name   string
		mutate func(*models.AlertRule)
	}{
		{"missing market", func(rule *models.AlertRule) { rule.Market = "" }},
		{"unknown kind", func(rule *models.AlertRule) { rule.Kind = "crosses" }},
		{"zero threshold", func(rule *models.AlertRule) { rule.Threshold = decimal.Zero }},
		{"change without percent", func(rule *models.AlertRule) {
			rule.Kind = models.RuleChangePercent
			rule.ChangePercent = decimal.Zero
		}},
	}
	for _, tt := range tests {
		rule := validRule()
		tt.mutate(&rule)
		if _, err := r.Create(ctx, rule); err == nil {
			t.Fatalf("%s: want error, got nil", tt.name)
		}
	}
}

func TestListByOwnerAndMatchActive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()

	mine := validRule()
	other := validRule()
	other.OwnerID = "farmer-2"
	other.Market = "Gumla"
	for _, rule := range []models.AlertRule{mine, other} {
		if _, err := r.Create(ctx, rule); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rules, err := r.ListByOwner(ctx, "farmer-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 1 || rules[0].OwnerID != "farmer-1" {
		t.Fatalf("list = %+v, want only farmer-1's rule", rules)
	}

	matched, err := r.MatchActive(ctx, "Paddy", "Gumla")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matched) != 1 || matched[0].OwnerID != "farmer-2" {
		t.Fatalf("match = %+v, want the Gumla rule", matched)
	}
}

func TestDeleteRemovesRule(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()

	created, err := r.Create(ctx, validRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := r.Get(ctx, created.ID); ok {
		t.Fatalf("rule still readable after delete")
	}
	if err := r.Delete(ctx, created.ID); err == nil {
		t.Fatalf("double delete: want error, got nil")
	}
}

func TestTransitionCAS(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()
	created, err := r.Create(ctx, validRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	observed := decimal.NewFromInt(1950)
	ok, err := r.Transition(ctx, created.ID, models.StateArmed, models.StateTriggered, observed)
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}

	// Losing CAS is silent: wrong expected state, no error.
	ok, err = r.Transition(ctx, created.ID, models.StateArmed, models.StateTriggered, observed)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatalf("CAS won twice from the same state")
	}

	status, _, _ := r.Status(ctx, created.ID)
	if status.State != models.StateTriggered {
		t.Fatalf("latch = %v, want triggered", status.State)
	}
	if !status.LastTriggerValue.Equal(observed) || status.LastTriggeredAt.IsZero() {
		t.Fatalf("trigger bookkeeping missing: %+v", status)
	}

	// Cooling down does not overwrite the trigger bookkeeping.
	if ok, _ := r.Transition(ctx, created.ID, models.StateTriggered, models.StateCooldown, decimal.Zero); !ok {
		t.Fatalf("cooldown transition lost")
	}
	status, _, _ = r.Status(ctx, created.ID)
	if !status.LastTriggerValue.Equal(observed) {
		t.Fatalf("last trigger value overwritten: %s", status.LastTriggerValue)
	}
}

func TestTransitionMissingRule(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()
	ok, err := r.Transition(ctx, "gone", models.StateArmed, models.StateTriggered, decimal.Zero)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if ok {
		t.Fatalf("transition on missing rule reported success")
	}
}

func TestTransitionConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRuleRegistry()
	created, err := r.Create(ctx, validRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	wins := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.Transition(ctx, created.ID, models.StateArmed, models.StateTriggered, decimal.NewFromInt(1950))
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("winners = %d, want exactly 1", count)
	}
}
