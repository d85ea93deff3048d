package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
)

func mustPoint(t *testing.T, commodity, market, date string, min, modal, max int64, source string, observed time.Time) models.PricePoint {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	p := models.PricePoint{
		Commodity:   commodity,
		Market:      market,
		State:       "Jharkhand",
		MinPrice:    decimal.NewFromInt(min),
		ModalPrice:  decimal.NewFromInt(modal),
		MaxPrice:    decimal.NewFromInt(max),
		PriceUnit:   "Quintal",
		ArrivalDate: day,
		Source:      source,
		ObservedAt:  observed,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid fixture: %v", err)
	}
	return p
}

func TestPutIdempotentPerSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	p := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", at)
	accepted, err := s.Put(ctx, p)
	if err != nil || !accepted {
		t.Fatalf("first put: accepted=%v err=%v", accepted, err)
	}

	// Identical replay is absorbed.
	accepted, err = s.Put(ctx, p)
	if err != nil {
		t.Fatalf("replay put: %v", err)
	}
	if accepted {
		t.Fatalf("identical replay accepted, want absorbed")
	}

	// A corrected value from the same source supersedes.
	corrected := p
	corrected.ModalPrice = decimal.NewFromInt(1910)
	accepted, err = s.Put(ctx, corrected)
	if err != nil || !accepted {
		t.Fatalf("corrected put: accepted=%v err=%v", accepted, err)
	}
	got, ok, err := s.Latest(ctx, "Paddy", "Ranchi")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if !got.ModalPrice.Equal(decimal.NewFromInt(1910)) {
		t.Fatalf("latest modal = %s, want corrected 1910", got.ModalPrice)
	}
}

func TestPutRejectsInvalidPoint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)

	p := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", time.Now())
	p.MinPrice = decimal.NewFromInt(2500) // breaks min <= modal
	if _, err := s.Put(ctx, p); err == nil {
		t.Fatalf("want validation error, got nil")
	}
}

func TestRangeOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	// Inserted out of date order; same-day rows from two sources.
	fixtures := []models.PricePoint{
		mustPoint(t, "Paddy", "Ranchi", "2026-08-03", 1900, 2000, 2100, "agmarknet", at),
		mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", at),
		mustPoint(t, "Paddy", "Ranchi", "2026-08-02", 1820, 1920, 2020, "enam", at),
		mustPoint(t, "Paddy", "Ranchi", "2026-08-02", 1850, 1950, 2050, "agmarknet", at),
		mustPoint(t, "Paddy", "Gumla", "2026-08-02", 1700, 1800, 1900, "agmarknet", at), // other series
	}
	for _, p := range fixtures {
		if _, err := s.Put(ctx, p); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	from, _ := time.Parse("2006-01-02", "2026-08-01")
	to, _ := time.Parse("2006-01-02", "2026-08-31")
	points, err := s.Range(ctx, "Paddy", "Ranchi", from, to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("range len = %d, want 4", len(points))
	}
	wantDates := []string{"2026-08-01", "2026-08-02", "2026-08-02", "2026-08-03"}
	for i, want := range wantDates {
		if got := points[i].Key().Date; got != want {
			t.Fatalf("points[%d].date = %s, want %s", i, got, want)
		}
	}
	// Same-day rows keep insertion order: enam was stored first.
	if points[1].Source != "enam" || points[2].Source != "agmarknet" {
		t.Fatalf("same-day order = %s, %s; want enam then agmarknet", points[1].Source, points[2].Source)
	}
}

func TestRangeBoundsInclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	for _, date := range []string{"2026-07-31", "2026-08-01", "2026-08-05", "2026-08-06"} {
		if _, err := s.Put(ctx, mustPoint(t, "Paddy", "Ranchi", date, 1800, 1900, 2000, "agmarknet", at)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	from, _ := time.Parse("2006-01-02", "2026-08-01")
	to, _ := time.Parse("2006-01-02", "2026-08-05")
	points, err := s.Range(ctx, "Paddy", "Ranchi", from, to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("range len = %d, want 2 (bounds inclusive)", len(points))
	}
}

func TestLatestResolvesBySourcePriority(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore([]string{"agmarknet", "enam"})
	at := time.Now()

	agmarknet := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "agmarknet", at)
	enam := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1820, 1950, 2050, "enam", at.Add(time.Hour))

	// The resolved winner must not depend on arrival order across batches.
	orders := [][]models.PricePoint{{agmarknet, enam}, {enam, agmarknet}}
	for _, order := range orders {
		s := NewMemoryPriceStore([]string{"agmarknet", "enam"})
		for _, p := range order {
			if _, err := s.Put(ctx, p); err != nil {
				t.Fatalf("put: %v", err)
			}
		}
		got, ok, err := s.Latest(ctx, "Paddy", "Ranchi")
		if err != nil || !ok {
			t.Fatalf("latest: ok=%v err=%v", ok, err)
		}
		if got.Source != "agmarknet" {
			t.Fatalf("latest source = %s, want agmarknet regardless of arrival order", got.Source)
		}
	}

	// Unranked sources lose to ranked ones.
	if _, err := s.Put(ctx, agmarknet); err != nil {
		t.Fatalf("put: %v", err)
	}
	rogue := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1, 2, 3, "scraper", at.Add(2*time.Hour))
	if _, err := s.Put(ctx, rogue); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _, _ := s.Latest(ctx, "Paddy", "Ranchi")
	if got.Source != "agmarknet" {
		t.Fatalf("latest source = %s, want ranked agmarknet over unranked scraper", got.Source)
	}
}

func TestLatestUnrankedTieLatestStoredWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	first := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1800, 1900, 2000, "sourceA", at)
	second := mustPoint(t, "Paddy", "Ranchi", "2026-08-01", 1820, 1950, 2050, "sourceB", at.Add(time.Minute))
	for _, p := range []models.PricePoint{first, second} {
		if _, err := s.Put(ctx, p); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	got, _, _ := s.Latest(ctx, "Paddy", "Ranchi")
	if got.Source != "sourceB" {
		t.Fatalf("latest source = %s, want most recently stored sourceB", got.Source)
	}
}

func TestPreviousStrictlyBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	for _, date := range []string{"2026-08-01", "2026-08-02", "2026-08-03"} {
		if _, err := s.Put(ctx, mustPoint(t, "Paddy", "Ranchi", date, 1800, 1900, 2000, "agmarknet", at)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	day, _ := time.Parse("2006-01-02", "2026-08-03")
	prev, ok, err := s.Previous(ctx, "Paddy", "Ranchi", day)
	if err != nil || !ok {
		t.Fatalf("previous: ok=%v err=%v", ok, err)
	}
	if prev.Key().Date != "2026-08-02" {
		t.Fatalf("previous date = %s, want 2026-08-02 (same day excluded)", prev.Key().Date)
	}

	first, _ := time.Parse("2006-01-02", "2026-08-01")
	if _, ok, _ := s.Previous(ctx, "Paddy", "Ranchi", first); ok {
		t.Fatalf("previous before first point must report none")
	}
}

func TestMarkets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore(nil)
	at := time.Now()

	for _, market := range []string{"Ranchi", "Gumla", "Ranchi"} {
		if _, err := s.Put(ctx, mustPoint(t, "Paddy", market, "2026-08-01", 1800, 1900, 2000, "agmarknet", at)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, err := s.Put(ctx, mustPoint(t, "Wheat", "Bokaro", "2026-08-01", 2200, 2300, 2400, "agmarknet", at)); err != nil {
		t.Fatalf("put: %v", err)
	}

	markets, err := s.Markets(ctx, "Paddy")
	if err != nil {
		t.Fatalf("markets: %v", err)
	}
	if len(markets) != 2 || markets[0] != "Gumla" || markets[1] != "Ranchi" {
		t.Fatalf("markets = %v, want [Gumla Ranchi]", markets)
	}
}
