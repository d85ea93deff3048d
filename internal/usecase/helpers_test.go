package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/repository"
	"CropPulse/pkg/cache"
	applogger "CropPulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

type nopMetrics struct{}

func (nopMetrics) RecordObservation(string, string)        {}
func (nopMetrics) RecordConflict(string)                   {}
func (nopMetrics) RecordCache(string, string)              {}
func (nopMetrics) RecordAlertFired(string)                 {}
func (nopMetrics) RecordDispatch(string, string)           {}
func (nopMetrics) RecordLastModalPrice(string, string, float64) {}
func (nopMetrics) RecordError(string)                      {}
func (nopMetrics) RecordLatency(string, float64)           {}

// recordingDispatcher captures fired events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev models.NotificationEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) Events() []models.NotificationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.NotificationEvent, len(d.events))
	copy(out, d.events)
	return out
}

func obs(commodity, market, date string, min, modal, max float64, source string, observed time.Time) models.RawObservation {
	return models.RawObservation{
		Commodity:   commodity,
		Market:      market,
		State:       "Jharkhand",
		MinPrice:    decimal.NewFromFloat(min),
		ModalPrice:  decimal.NewFromFloat(modal),
		MaxPrice:    decimal.NewFromFloat(max),
		ArrivalDate: date,
		Source:      source,
		ObservedAt:  observed,
	}
}

func point(t *testing.T, commodity, market, date string, min, modal, max float64, source string, observed time.Time) models.PricePoint {
	t.Helper()
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	points, errs, _ := n.Normalize([]models.RawObservation{obs(commodity, market, date, min, modal, max, source, observed)})
	if len(errs) != 0 || len(points) != 1 {
		t.Fatalf("building point: errs=%v points=%d", errs, len(points))
	}
	return points[0]
}

// engine bundles the real in-memory wiring used across tests.
type engine struct {
	store      *repository.MemoryPriceStore
	registry   *repository.MemoryRuleRegistry
	dispatcher *recordingDispatcher
	evaluator  *Evaluator
	ingestor   *Ingestor
}

func newEngine(t *testing.T, priority []string) *engine {
	t.Helper()
	log := testLogger(t)
	store := repository.NewMemoryPriceStore(priority)
	registry := repository.NewMemoryRuleRegistry()
	dispatcher := &recordingDispatcher{}
	rt := cache.NewReadThrough(cache.NewMemoryCache())
	evaluator := NewEvaluator(registry, store, dispatcher, nopMetrics{}, log, testNode(t))
	normalizer := NewNormalizer(priority, log, nopMetrics{})
	ingestor := NewIngestor(normalizer, store, rt, evaluator, nopMetrics{}, log)
	return &engine{store: store, registry: registry, dispatcher: dispatcher, evaluator: evaluator, ingestor: ingestor}
}

func mustCreateRule(t *testing.T, reg *repository.MemoryRuleRegistry, rule models.AlertRule) models.AlertRule {
	t.Helper()
	created, err := reg.Create(context.Background(), rule)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return created
}
