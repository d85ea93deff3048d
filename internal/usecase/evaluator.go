package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
	applogger "CropPulse/pkg/logger"
)

// ErrInsufficientHistory marks a change_percent rule that has no prior
// point to measure against. The rule stays armed.
var ErrInsufficientHistory = errors.New("no prior point for change computation")

var hundred = decimal.NewFromInt(100)

// Evaluator runs every matching rule against each newly accepted point and
// fires at most one notification per rule per trigger cycle. The latch
// (armed -> triggered -> cooldown -> armed) lives in the registry; the
// triggered step is claimed by compare-and-swap so concurrent evaluations
// of the same rule produce exactly one event.
type Evaluator struct {
	registry   domrepo.RuleRegistry
	store      domrepo.PriceStore
	dispatcher domrepo.Dispatcher
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	node       *snowflake.Node
	now        func() time.Time
}

func NewEvaluator(
	registry domrepo.RuleRegistry,
	store domrepo.PriceStore,
	dispatcher domrepo.Dispatcher,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	node *snowflake.Node,
) *Evaluator {
	return &Evaluator{
		registry:   registry,
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		node:       node,
		now:        time.Now,
	}
}

// Evaluate runs all active rules subscribed to the point's series. A
// failure in one rule is logged and does not stop the others.
func (e *Evaluator) Evaluate(ctx context.Context, p models.PricePoint) {
	rules, err := e.registry.MatchActive(ctx, p.Commodity, p.Market)
	if err != nil {
		e.metrics.RecordError("rule_match")
		e.logger.Error("matching rules failed", applogger.Error(err),
			applogger.String("series", p.SeriesID()))
		return
	}

	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule, p); err != nil {
			e.metrics.RecordError("rule_evaluation")
			e.logger.Error("rule evaluation failed", applogger.Error(err),
				applogger.String("rule_id", rule.ID),
				applogger.String("series", p.SeriesID()))
		}
	}
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule models.AlertRule, p models.PricePoint) error {
	satisfied, observed, err := e.conditionSatisfied(ctx, rule, p)
	if errors.Is(err, ErrInsufficientHistory) {
		e.logger.Debug("rule skipped, insufficient history",
			applogger.String("rule_id", rule.ID))
		return nil
	}
	if err != nil {
		return err
	}

	if !satisfied {
		// Re-arm a cooled-down rule once the condition clears. A lost CAS
		// here only means another evaluation already re-armed it.
		if _, err := e.registry.Transition(ctx, rule.ID, models.StateCooldown, models.StateArmed, observed); err != nil {
			return fmt.Errorf("re-arming rule %s: %w", rule.ID, err)
		}
		return nil
	}

	won, err := e.registry.Transition(ctx, rule.ID, models.StateArmed, models.StateTriggered, observed)
	if err != nil {
		return fmt.Errorf("claiming trigger for rule %s: %w", rule.ID, err)
	}
	if !won {
		// Still in cooldown, or another evaluation claimed the trigger.
		return nil
	}

	ev := models.NotificationEvent{
		EventID:   e.node.Generate().Int64(),
		RuleID:    rule.ID,
		OwnerID:   rule.OwnerID,
		Kind:      rule.Kind,
		Threshold: rule.Threshold,
		Observed:  observed,
		Point:     p,
		FiredAt:   e.now(),
	}
	if err := e.dispatcher.Dispatch(ctx, ev); err != nil {
		// Handoff failures do not reset the latch: the trigger was
		// observed once, duplicates are worse than a dropped delivery.
		e.metrics.RecordError("dispatch")
		e.logger.Error("dispatch failed", applogger.Error(err),
			applogger.String("rule_id", rule.ID),
			applogger.Int64("event_id", ev.EventID))
	}
	e.metrics.RecordAlertFired(string(rule.Kind))
	e.logger.Info("alert fired",
		applogger.String("rule_id", rule.ID),
		applogger.String("kind", string(rule.Kind)),
		applogger.String("series", p.SeriesID()),
		applogger.String("observed", observed.String()),
		applogger.Int64("event_id", ev.EventID))

	if _, err := e.registry.Transition(ctx, rule.ID, models.StateTriggered, models.StateCooldown, observed); err != nil {
		return fmt.Errorf("cooling down rule %s: %w", rule.ID, err)
	}
	return nil
}

// conditionSatisfied computes the rule predicate against the point. For
// change_percent the observed value reported is the absolute percentage
// change, not the price itself.
func (e *Evaluator) conditionSatisfied(ctx context.Context, rule models.AlertRule, p models.PricePoint) (bool, decimal.Decimal, error) {
	switch rule.Kind {
	case models.RuleAbove:
		return p.ModalPrice.GreaterThanOrEqual(rule.Threshold), p.ModalPrice, nil
	case models.RuleBelow:
		return p.ModalPrice.LessThanOrEqual(rule.Threshold), p.ModalPrice, nil
	case models.RuleChangePercent:
		prev, ok, err := e.store.Previous(ctx, p.Commodity, p.Market, p.ArrivalDate)
		if err != nil {
			return false, decimal.Zero, fmt.Errorf("loading previous point: %w", err)
		}
		if !ok {
			return false, decimal.Zero, ErrInsufficientHistory
		}
		change := p.ModalPrice.Sub(prev.ModalPrice).Div(prev.ModalPrice).Mul(hundred).Abs()
		return change.GreaterThanOrEqual(rule.ChangePercent), change, nil
	}
	return false, decimal.Zero, fmt.Errorf("unknown rule kind %q", rule.Kind)
}
