package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
)

func TestNormalizeRejectsInvalidRecords(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	at := time.Now()

	raw := []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1900, 2000, "agmarknet", at), // valid
		obs("Paddy", "Ranchi", "2026-08-11", 2000, 1900, 2100, "agmarknet", at), // min > modal
		obs("Paddy", "Ranchi", "2026-08-12", 1800, 2200, 2100, "agmarknet", at), // modal > max
		obs("Paddy", "Ranchi", "2026-08-13", 0, 1900, 2000, "agmarknet", at),    // zero min
		obs("Paddy", "Ranchi", "2026-08-14", -50, 1900, 2000, "agmarknet", at),  // negative min
		obs("Paddy", "Ranchi", "not-a-date", 1800, 1900, 2000, "agmarknet", at),
		obs("", "Ranchi", "2026-08-15", 1800, 1900, 2000, "agmarknet", at), // no commodity
	}

	points, errs, conflicts := n.Normalize(raw)
	if len(points) != 1 {
		t.Fatalf("accepted = %d, want 1", len(points))
	}
	if len(errs) != 6 {
		t.Fatalf("rejected = %d, want 6; errs=%v", len(errs), errs)
	}
	if conflicts != 0 {
		t.Fatalf("conflicts = %d, want 0", conflicts)
	}
	// rejection indexes point back at the offending records
	for _, e := range errs {
		if e.Index == 0 {
			t.Fatalf("valid record rejected: %v", e)
		}
	}
}

func TestNormalizeAcceptsUpstreamDateLayouts(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	at := time.Now()

	tests := []struct {
		date string
		want string
	}{
		{"2026-08-10", "2026-08-10"},
		{"10/08/2026", "2026-08-10"},
		{"10-Aug-2026", "2026-08-10"},
	}
	for _, tt := range tests {
		points, errs, _ := n.Normalize([]models.RawObservation{
			obs("Paddy", "Ranchi", tt.date, 1800, 1900, 2000, "agmarknet", at),
		})
		if len(errs) != 0 {
			t.Fatalf("date %q rejected: %v", tt.date, errs)
		}
		if got := points[0].Key().Date; got != tt.want {
			t.Fatalf("date %q normalized to %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestNormalizeConflictPrefersRankedSource(t *testing.T) {
	n := NewNormalizer([]string{"agmarknet", "enam"}, testLogger(t), nopMetrics{})
	early := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	// eNAM reports later but Agmarknet outranks it; order of arrival must not matter.
	forward := []models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1900, 2000, "agmarknet", early),
		obs("Paddy", "Ranchi", "2026-08-10", 1820, 1950, 2050, "enam", late),
	}
	reversed := []models.RawObservation{forward[1], forward[0]}

	for _, batch := range [][]models.RawObservation{forward, reversed} {
		points, errs, conflicts := n.Normalize(batch)
		if len(errs) != 0 {
			t.Fatalf("unexpected rejections: %v", errs)
		}
		if conflicts != 1 {
			t.Fatalf("conflicts = %d, want 1", conflicts)
		}
		if len(points) != 1 {
			t.Fatalf("points = %d, want 1", len(points))
		}
		if points[0].Source != "agmarknet" {
			t.Fatalf("winner = %s, want agmarknet", points[0].Source)
		}
		if !points[0].ModalPrice.Equal(decimal.NewFromInt(1900)) {
			t.Fatalf("winner modal = %s, want 1900 (values must never be averaged)", points[0].ModalPrice)
		}
	}
}

func TestNormalizeConflictUnrankedFallsBackToLatestObserved(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	early := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	points, _, conflicts := n.Normalize([]models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1900, 2000, "sourceA", late),
		obs("Paddy", "Ranchi", "2026-08-10", 1820, 1950, 2050, "sourceB", early),
	})
	if conflicts != 1 {
		t.Fatalf("conflicts = %d, want 1", conflicts)
	}
	if points[0].Source != "sourceA" {
		t.Fatalf("winner = %s, want the later-observed sourceA", points[0].Source)
	}
}

func TestNormalizeSameSourceRepeatKeepsLatest(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	early := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	points, _, conflicts := n.Normalize([]models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1900, 2000, "agmarknet", early),
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1910, 2000, "agmarknet", early.Add(time.Minute)),
	})
	if conflicts != 0 {
		t.Fatalf("same-source repeat counted as conflict")
	}
	if len(points) != 1 || !points[0].ModalPrice.Equal(decimal.NewFromInt(1910)) {
		t.Fatalf("want single point with modal 1910, got %v", points)
	}
}

func TestNormalizeDefaultsPriceUnit(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	points, errs, _ := n.Normalize([]models.RawObservation{
		obs("Paddy", "Ranchi", "2026-08-10", 1800, 1900, 2000, "agmarknet", time.Now()),
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected rejections: %v", errs)
	}
	if points[0].PriceUnit != "Quintal" {
		t.Fatalf("unit = %q, want Quintal", points[0].PriceUnit)
	}
}

func TestValidationErrorMessageNamesTheSlot(t *testing.T) {
	n := NewNormalizer(nil, testLogger(t), nopMetrics{})
	_, errs, _ := n.Normalize([]models.RawObservation{
		obs("Wheat", "Dhanbad", "2026-08-10", 2400, 2300, 2500, "enam", time.Now()),
	})
	if len(errs) != 1 {
		t.Fatalf("want 1 rejection, got %d", len(errs))
	}
	msg := errs[0].Error()
	if !strings.Contains(msg, "Wheat") || !strings.Contains(msg, "Dhanbad") {
		t.Fatalf("error message %q does not identify the record", msg)
	}
}
