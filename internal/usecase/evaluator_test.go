package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
)

func armedAbove(commodity, market string, threshold int64) models.AlertRule {
	return models.AlertRule{
		OwnerID:   "farmer-1",
		Commodity: commodity,
		Market:    market,
		Kind:      models.RuleAbove,
		Threshold: decimal.NewFromInt(threshold),
	}
}

func TestAboveRuleFiresExactlyOncePerCrossing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	day := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// History predates the rule; creating the rule never fires retroactively.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", day),
	}); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	rule := mustCreateRule(t, e.registry, armedAbove("Paddy", "Ranchi", 1900))
	if got := len(e.dispatcher.Events()); got != 0 {
		t.Fatalf("rule creation fired %d events, want 0", got)
	}

	// First satisfying observation after creation fires exactly once.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", day.AddDate(0, 0, 1)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	events := e.dispatcher.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].RuleID != rule.ID || !events[0].Observed.Equal(decimal.NewFromInt(1950)) {
		t.Fatalf("unexpected event: %+v", events[0])
	}

	// Still above the threshold: the latch is in cooldown, no second event.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-03", 1860, 1960, 2060, "agmarknet", day.AddDate(0, 0, 2)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 1 {
		t.Fatalf("events = %d after sustained crossing, want 1", got)
	}

	// Dropping below the threshold re-arms without firing.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-04", 1750, 1850, 1950, "agmarknet", day.AddDate(0, 0, 3)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 1 {
		t.Fatalf("events = %d after re-arm, want 1", got)
	}
	status, ok, _ := e.registry.Status(ctx, rule.ID)
	if !ok || status.State != models.StateArmed {
		t.Fatalf("latch = %v, want armed", status.State)
	}

	// Second crossing fires a second event.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-05", 1820, 1920, 2020, "agmarknet", day.AddDate(0, 0, 4)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 2 {
		t.Fatalf("events = %d after second crossing, want 2", got)
	}
}

func TestReplayedObservationDoesNotReEvaluate(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mustCreateRule(t, e.registry, armedAbove("Paddy", "Ranchi", 1900))
	batch := []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", at),
	}
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", batch); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// Exact replay: absorbed, no evaluation. The latch would fire again if
	// it were re-armed in between, so this must not even reach the evaluator.
	res, err := e.ingestor.SubmitObservations(ctx, "agmarknet", batch)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}
	if res.Accepted != 0 {
		t.Fatalf("replay accepted = %d, want 0", res.Accepted)
	}
	if got := len(e.dispatcher.Events()); got != 1 {
		t.Fatalf("events = %d after replay, want 1", got)
	}
}

func TestBelowRuleFires(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	rule := models.AlertRule{
		OwnerID:   "farmer-2",
		Commodity: "Wheat",
		Market:    "Dhanbad",
		Kind:      models.RuleBelow,
		Threshold: decimal.NewFromInt(2200),
	}
	mustCreateRule(t, e.registry, rule)

	if _, err := e.ingestor.SubmitObservations(ctx, "enam", []models.RawObservation{
		obs("Wheat", "Dhanbad", "2026-08-02", 2000, 2100, 2300, "enam", time.Now()),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	events := e.dispatcher.Events()
	if len(events) != 1 || events[0].Kind != models.RuleBelow {
		t.Fatalf("want one below event, got %+v", events)
	}
}

func TestRulesOnOtherSeriesAreUntouched(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	mustCreateRule(t, e.registry, armedAbove("Paddy", "Gumla", 1))
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", time.Now()),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 0 {
		t.Fatalf("events = %d for unrelated market, want 0", got)
	}
}

func TestChangePercentNeedsHistory(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	rule := models.AlertRule{
		OwnerID:       "farmer-3",
		Commodity:     "Paddy",
		Market:        "Ranchi",
		Kind:          models.RuleChangePercent,
		ChangePercent: decimal.NewFromInt(5),
	}
	created := mustCreateRule(t, e.registry, rule)

	// First ever point: no prior to measure against, rule stays armed.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", time.Now()),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 0 {
		t.Fatalf("events = %d with no history, want 0", got)
	}
	status, _, _ := e.registry.Status(ctx, created.ID)
	if status.State != models.StateArmed {
		t.Fatalf("latch = %v after skipped evaluation, want armed", status.State)
	}

	// +2.6% move: below the 5% band, no fire.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", time.Now()),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := len(e.dispatcher.Events()); got != 0 {
		t.Fatalf("events = %d for 2.6%% move, want 0", got)
	}

	// -7.7% drop fires; the observed value is the absolute change.
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-03", 1700, 1800, 1900, "agmarknet", time.Now()),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	events := e.dispatcher.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d for 7.7%% move, want 1", len(events))
	}
	if events[0].Observed.LessThan(decimal.NewFromInt(5)) {
		t.Fatalf("observed change = %s, want >= 5", events[0].Observed)
	}
}

func TestConcurrentEvaluationsFireOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	rule := mustCreateRule(t, e.registry, armedAbove("Paddy", "Ranchi", 1900))
	p := point(t, "Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", time.Now())
	if _, err := e.store.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.evaluator.Evaluate(ctx, p)
		}()
	}
	wg.Wait()

	if got := len(e.dispatcher.Events()); got != 1 {
		t.Fatalf("events = %d from concurrent evaluations, want 1", got)
	}
	status, _, _ := e.registry.Status(ctx, rule.ID)
	if status.State != models.StateCooldown {
		t.Fatalf("latch = %v, want cooldown", status.State)
	}
	if !status.LastTriggerValue.Equal(decimal.NewFromInt(1950)) {
		t.Fatalf("last trigger value = %s, want 1950", status.LastTriggerValue)
	}
}
