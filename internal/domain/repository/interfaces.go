package repository

import (
	"context"
	"time"

	"CropPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

// PriceStore is the durable, append-mostly time series keyed by
// (commodity, market, date). Put is idempotent per (key, source): replaying
// an identical observation returns accepted=false and stores nothing new.
type PriceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Put(ctx context.Context, p models.PricePoint) (accepted bool, err error)
	// Range returns points ascending by arrival date, ties broken by
	// insertion order.
	Range(ctx context.Context, commodity, market string, from, to time.Time) ([]models.PricePoint, error)
	// Latest returns the newest point for the series, resolving same-day
	// multi-source rows by configured source priority. ok=false when the
	// series is empty.
	Latest(ctx context.Context, commodity, market string) (p models.PricePoint, ok bool, err error)
	// Previous returns the most recent point strictly before the given date.
	Previous(ctx context.Context, commodity, market string, before time.Time) (p models.PricePoint, ok bool, err error)
	// Markets lists the markets that have stored points for the commodity.
	Markets(ctx context.Context, commodity string) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// RuleRegistry holds active alert rules and their trigger latches. State
// transitions are owned exclusively by the evaluator; reads are shared.
type RuleRegistry interface {
	Create(ctx context.Context, rule models.AlertRule) (models.AlertRule, error)
	Delete(ctx context.Context, ruleID string) error
	Get(ctx context.Context, ruleID string) (models.AlertRule, bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.AlertRule, error)
	// MatchActive returns a snapshot of active rules subscribed to the series.
	MatchActive(ctx context.Context, commodity, market string) ([]models.AlertRule, error)
	// Status returns the rule's current latch.
	Status(ctx context.Context, ruleID string) (models.TriggerStatus, bool, error)
	// Transition atomically moves the latch from one state to another,
	// recording the observed value. It returns false without side effects
	// when the latch is not in the expected state, so two concurrent
	// evaluations cannot both win the armed -> triggered race.
	Transition(ctx context.Context, ruleID string, from, to models.TriggerState, observed decimal.Decimal) (bool, error)
}

// Dispatcher hands notification events to the external delivery system.
// The core's obligation ends at successful handoff.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.NotificationEvent) error
	Close() error
}

// SourceClient fetches one upstream source's observation batch for a day.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, day time.Time) ([]models.RawObservation, error)
}

// Metrics abstracts the operational counters the engine records.
type Metrics interface {
	RecordObservation(source, result string) // result: accepted|rejected|replayed
	RecordConflict(commodity string)
	RecordCache(category, result string) // result: hit|miss|load_error
	RecordAlertFired(kind string)
	RecordDispatch(backend, result string)
	RecordLastModalPrice(commodity, market string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
