package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/repository"
	"CropPulse/pkg/cache"
	"CropPulse/pkg/util"
)

func TestSubmitObservationsCounts(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, []string{"agmarknet", "enam"})
	at := time.Now()

	res, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", at),
		obs("Paddy", "Ranchi", "2026-08-01", 1820, 1950, 2050, "enam", at.Add(time.Minute)),
		obs("Wheat", "Dhanbad", "2026-08-01", 2100, 2050, 2300, "agmarknet", at), // min > modal
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Accepted != 1 || res.Rejected != 1 || res.Conflicts != 1 {
		t.Fatalf("result = %+v, want accepted=1 rejected=1 conflicts=1", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Observation.Commodity != "Wheat" {
		t.Fatalf("errors = %+v", res.Errors)
	}
}

func TestSubmitFillsMissingSource(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	raw := obs("Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "", time.Time{})
	if _, err := e.ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{raw}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	p, ok, err := e.store.Latest(ctx, "Paddy", "Ranchi")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if p.Source != "agmarknet" {
		t.Fatalf("source = %q, want agmarknet", p.Source)
	}
	if p.ObservedAt.IsZero() {
		t.Fatalf("observed-at not stamped")
	}
}

func TestIngestInvalidatesCachedReads(t *testing.T) {
	ctx := context.Background()
	log := testLogger(t)
	store := repository.NewMemoryPriceStore(nil)
	rt := cache.NewReadThrough(cache.NewMemoryCache())
	reader := NewPriceReader(store, rt, nopMetrics{}, log)
	evaluator := NewEvaluator(repository.NewMemoryRuleRegistry(), store, &recordingDispatcher{}, nopMetrics{}, log, testNode(t))
	ingestor := NewIngestor(NewNormalizer(nil, log, nopMetrics{}), store, rt, evaluator, nopMetrics{}, log)

	// History reads cover the trailing 30 days, so the dates are pinned
	// relative to the run date.
	at := time.Now()
	day := func(back int) string { return util.FormatDate(at.AddDate(0, 0, -back)) }
	if _, err := ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", day(2), 1800, 1900, 2000, "agmarknet", at),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	before, err := reader.Current(ctx, "Paddy", "Ranchi")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !before.ModalPrice.Equal(decimal.NewFromInt(1900)) {
		t.Fatalf("modal = %s, want 1900", before.ModalPrice)
	}

	// Well within the 30m prices TTL, yet the new point must be visible
	// immediately because ingest invalidates the series key.
	if _, err := ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", day(1), 1850, 1950, 2050, "agmarknet", at.Add(time.Minute)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	after, err := reader.Current(ctx, "Paddy", "Ranchi")
	if err != nil {
		t.Fatalf("current after ingest: %v", err)
	}
	if !after.ModalPrice.Equal(decimal.NewFromInt(1950)) {
		t.Fatalf("modal after ingest = %s, want 1950 (stale cache served)", after.ModalPrice)
	}

	history, err := reader.History(ctx, "Paddy", "Ranchi", 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Points) < 2 {
		t.Fatalf("history points = %d, want >= 2", len(history.Points))
	}
	// Range reads are cached too; a third ingest must purge them.
	if _, err := ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", day(0), 1900, 2000, 2100, "agmarknet", at.Add(2*time.Minute)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	history, err = reader.History(ctx, "Paddy", "Ranchi", 30)
	if err != nil {
		t.Fatalf("history after ingest: %v", err)
	}
	last := history.Points[len(history.Points)-1]
	if !last.ModalPrice.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("history tail modal = %s, want 2000", last.ModalPrice)
	}
}

func TestCurrentPricesAggregatesMarkets(t *testing.T) {
	ctx := context.Background()
	log := testLogger(t)
	store := repository.NewMemoryPriceStore(nil)
	rt := cache.NewReadThrough(cache.NewMemoryCache())
	reader := NewPriceReader(store, rt, nopMetrics{}, log)
	evaluator := NewEvaluator(repository.NewMemoryRuleRegistry(), store, &recordingDispatcher{}, nopMetrics{}, log, testNode(t))
	ingestor := NewIngestor(NewNormalizer(nil, log, nopMetrics{}), store, rt, evaluator, nopMetrics{}, log)

	at := time.Now()
	if _, err := ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", at),
		obs("Paddy", "Gumla", "2026-08-01", 1700, 1800, 1900, "agmarknet", at),
		obs("Wheat", "Ranchi", "2026-08-01", 2200, 2300, 2400, "agmarknet", at),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	view, err := reader.CurrentPrices(ctx, "Paddy")
	if err != nil {
		t.Fatalf("current prices: %v", err)
	}
	if len(view.Markets) != 2 {
		t.Fatalf("markets = %d, want 2", len(view.Markets))
	}
	if view.Markets[0].Market != "Gumla" || view.Markets[1].Market != "Ranchi" {
		t.Fatalf("markets not sorted: %v, %v", view.Markets[0].Market, view.Markets[1].Market)
	}

	// A fresh Gumla point must replace the cached aggregate.
	if _, err := ingestor.SubmitObservations(ctx, "agmarknet", []models.RawObservation{
		obs("Paddy", "Gumla", "2026-08-02", 1750, 1850, 1950, "agmarknet", at.Add(time.Minute)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	view, err = reader.CurrentPrices(ctx, "Paddy")
	if err != nil {
		t.Fatalf("current prices after ingest: %v", err)
	}
	if !view.Markets[0].ModalPrice.Equal(decimal.NewFromInt(1850)) {
		t.Fatalf("Gumla modal = %s, want 1850", view.Markets[0].ModalPrice)
	}
}

func TestReaderFailsClosedOnEmptySeries(t *testing.T) {
	ctx := context.Background()
	log := testLogger(t)
	reader := NewPriceReader(repository.NewMemoryPriceStore(nil), cache.NewReadThrough(cache.NewMemoryCache()), nopMetrics{}, log)

	if _, err := reader.Current(ctx, "Paddy", "Nowhere"); err == nil {
		t.Fatalf("want error for empty series, got nil")
	}
}
